package request

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"paygate-service/domain"
)

var (
	ErrNoSession = errors.New("session is not resolved")
)

type Context struct {
	request        *http.Request
	responseWriter http.ResponseWriter

	endpoint string

	session *domain.Session

	format         domain.Format
	formatResolved bool
}

func NewContext(request *http.Request, response http.ResponseWriter, endpoint string) *Context {
	return &Context{
		request:        request,
		responseWriter: response,
		endpoint:       endpoint,
	}
}

func (c *Context) Request() *http.Request {
	return c.request
}

func (c *Context) ResponseWriter() http.ResponseWriter {
	return c.responseWriter
}

func (c *Context) SetResponseWriter(writer http.ResponseWriter) {
	c.responseWriter = writer
}

// Endpoint is the request path relative to the location prefix,
// with any recognized format suffix stripped.
func (c *Context) Endpoint() string {
	return c.endpoint
}

func (c *Context) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

func (c *Context) Query() url.Values {
	return c.request.URL.Query()
}

func (c *Context) SetSession(session *domain.Session) {
	c.session = session
}

func (c *Context) Session() (*domain.Session, error) {
	if c.session == nil {
		return nil, ErrNoSession
	}
	return c.session, nil
}

func (c *Context) SetFormat(format domain.Format) {
	c.format = format
	c.formatResolved = true
}

func (c *Context) Format() domain.Format {
	if !c.formatResolved {
		return domain.FormatCanonical
	}
	return c.format
}

func (c *Context) Context() context.Context {
	return c.request.Context()
}

func (c *Context) SetContext(ctx context.Context) {
	c.request = c.request.WithContext(ctx)
}
