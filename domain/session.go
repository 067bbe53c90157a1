package domain

type Caller struct {
	Id          string
	Balance     int64
	Email       string
	ExternalRef string
}

type Session struct {
	Authenticated bool
	Payer         bool
	Caller        *Caller
}

// PayingCaller reports whether the session belongs to an authenticated payer
// with a resolved caller identity.
func (s *Session) PayingCaller() bool {
	return s != nil && s.Authenticated && s.Payer && s.Caller != nil
}

func (s *Session) Balance() int64 {
	if s == nil || s.Caller == nil {
		return 0
	}
	return s.Caller.Balance
}

type ResolveSessionRequest struct {
	Token  string
	Method string
	Path   string
}

// ResolveSessionResponse is either a terminal response for an infrastructure
// route fully handled by the billing module, or a session. Both may be empty,
// meaning no usable session could be established.
type ResolveSessionResponse struct {
	Handled  bool
	Response *RawResponse
	Session  *Session
}

type RawResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type ChargeRequest struct {
	CallerId         string
	AmountMinorUnits int64
	Immediate        bool
}

type ChargeResponse struct {
	Charged bool
}
