// nolint:canonicalheader
package tests

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/txix-open/isp-kit/lb"
	"github.com/txix-open/isp-kit/test"
	"github.com/txix-open/isp-kit/test/grpct"

	"paygate-service/assembly"
	"paygate-service/conf"
	"paygate-service/domain"
	"paygate-service/tasks"
)

const (
	payerToken = "payer-token"

	markdownDoc = "# Weather\n\nBerlin, **25** degrees\n"
)

type errorResponse struct {
	ErrorCode    string            `json:"errorCode"`
	ErrorMessage string            `json:"errorMessage"`
	Details      []json.RawMessage `json:"details"`
}

type chargeRecorder struct {
	lock    sync.Mutex
	charges []domain.ChargeRequest
}

func (r *chargeRecorder) add(req domain.ChargeRequest) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.charges = append(r.charges, req)
}

func (r *chargeRecorder) all() []domain.ChargeRequest {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]domain.ChargeRequest{}, r.charges...)
}

type AcceptanceTestSuite struct {
	suite.Suite
}

func TestAcceptanceTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(AcceptanceTestSuite))
}

type environment struct {
	srv     *httptest.Server
	charges *chargeRecorder
}

// nolint:funlen
func (s *AcceptanceTestSuite) environment(
	test *test.Test,
	gateway conf.Gateway,
	upstream http.Handler,
	resolve func(req domain.ResolveSessionRequest) domain.ResolveSessionResponse,
) environment {
	require := test.Assert()
	redisCli := NewRedis(test)
	ctx := context.Background()
	s.T().Cleanup(func() {
		err := redisCli.FlushDB(ctx).Err()
		require.NoError(err)
		err = redisCli.Close()
		require.NoError(err)
	})

	charges := &chargeRecorder{}
	billingService, billingCli := grpct.NewMock(test)
	billingService.Mock("billing/session/resolve", func(req domain.ResolveSessionRequest) domain.ResolveSessionResponse {
		return resolve(req)
	}).Mock("billing/session/charge", func(req domain.ChargeRequest) domain.ChargeResponse {
		charges.add(req)
		return domain.ChargeResponse{Charged: true}
	})

	upstreamSrv := httptest.NewServer(upstream)
	s.T().Cleanup(upstreamSrv.Close)
	upstreamUrl, err := url.Parse(upstreamSrv.URL)
	require.NoError(err)
	hostManagers := map[string]*lb.RoundRobin{
		"target": lb.NewRoundRobin([]string{upstreamUrl.Host}),
	}

	queue := tasks.NewQueue(64, 2, 5*time.Second, test.Logger())
	go func() {
		_ = queue.Run(context.Background())
	}()
	s.T().Cleanup(func() {
		_ = queue.Close()
	})

	config := conf.Remote{
		Redis:   &conf.Redis{Address: redisCli.Address()},
		Http:    conf.Http{MaxRequestBodySizeInMb: 1, ProxyTimeoutInSec: 15},
		Gateway: gateway,
	}
	locator := assembly.NewLocator(test.Logger(), billingCli, hostManagers, queue)
	handler := locator.Handler(config, []conf.Location{{
		PathPrefix:   "/api",
		TargetModule: "target",
	}}, redisCli)

	srv := httptest.NewServer(handler)
	s.T().Cleanup(srv.Close)

	return environment{srv: srv, charges: charges}
}

func anonymousResolver(req domain.ResolveSessionRequest) domain.ResolveSessionResponse {
	return domain.ResolveSessionResponse{Session: &domain.Session{}}
}

func payerResolver(balance int64) func(req domain.ResolveSessionRequest) domain.ResolveSessionResponse {
	return func(req domain.ResolveSessionRequest) domain.ResolveSessionResponse {
		if req.Token != payerToken {
			return domain.ResolveSessionResponse{Session: &domain.Session{}}
		}
		return domain.ResolveSessionResponse{
			Session: &domain.Session{
				Authenticated: true,
				Payer:         true,
				Caller: &domain.Caller{
					Id:          "caller-1",
					Balance:     balance,
					ExternalRef: "ref-1",
				},
			},
		}
	}
}

func markdownUpstream(hit *int, header http.Header) http.Handler {
	var lock sync.Mutex
	return http.HandlerFunc(func(writer http.ResponseWriter, r *http.Request) {
		lock.Lock()
		if hit != nil {
			*hit++
		}
		lock.Unlock()
		for name, values := range header {
			for _, value := range values {
				writer.Header().Add(name, value)
			}
		}
		writer.Header().Set("Content-Type", "text/markdown")
		_, _ = writer.Write([]byte(markdownDoc))
	})
}

func (s *AcceptanceTestSuite) get(url string, token string) (*http.Response, []byte) {
	require := s.Require()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(err)
	if token != "" {
		req.Header.Set("x-session-token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(err)
	return resp, body
}

func (s *AcceptanceTestSuite) TestCacheMissThenHit() {
	test, require := test.New(s.T())
	env := s.environment(test, conf.Gateway{}, markdownUpstream(nil, nil), anonymousResolver)
	docUrl := env.srv.URL + "/api/weather-" + uuid.New().String()

	resp, body := s.get(docUrl+".md", "")
	require.EqualValues(http.StatusOK, resp.StatusCode)
	require.EqualValues(domain.CacheMiss, resp.Header.Get("X-Cache"))
	require.EqualValues(markdownDoc, string(body))
	require.Contains(resp.Header.Get("Content-Type"), "text/markdown")

	require.Eventually(func() bool {
		resp, body := s.get(docUrl+".md", "")
		return resp.Header.Get("X-Cache") == domain.CacheHit &&
			string(body) == markdownDoc
	}, 3*time.Second, 50*time.Millisecond)
}

func (s *AcceptanceTestSuite) TestRenderedFormatServedAndCached() {
	test, require := test.New(s.T())
	env := s.environment(test, conf.Gateway{}, markdownUpstream(nil, nil), anonymousResolver)

	docUrl := env.srv.URL + "/api/weather-" + uuid.New().String()

	resp, body := s.get(docUrl+".html", "")
	require.EqualValues(http.StatusOK, resp.StatusCode)
	require.EqualValues(domain.CacheMiss, resp.Header.Get("X-Cache"))
	require.Contains(resp.Header.Get("Content-Type"), "text/html")
	require.Contains(string(body), "<h1>Weather</h1>")
	require.Contains(string(body), "<strong>25</strong>")

	// one invocation populates both representations
	require.Eventually(func() bool {
		resp, _ := s.get(docUrl+".md", "")
		return resp.Header.Get("X-Cache") == domain.CacheHit
	}, 3*time.Second, 50*time.Millisecond)
}

func (s *AcceptanceTestSuite) TestFreeTierLimit() {
	test, require := test.New(s.T())
	gateway := conf.Gateway{
		FreeTierQuota:       2,
		FreeTierWindowInSec: 3600,
		PurchaseUrl:         "https://pay.example/topup",
	}
	env := s.environment(test, gateway, markdownUpstream(nil, nil), anonymousResolver)

	for _, path := range []string{"/api/a.md", "/api/b.md"} {
		resp, _ := s.get(env.srv.URL+path, "")
		require.EqualValues(http.StatusOK, resp.StatusCode)
	}

	resp, body := s.get(env.srv.URL+"/api/c.md", "")
	require.EqualValues(http.StatusPaymentRequired, resp.StatusCode)
	errResp := errorResponse{}
	err := json.Unmarshal(body, &errResp)
	require.NoError(err)
	require.EqualValues("free tier limit has been reached", errResp.ErrorMessage)

	require.Len(errResp.Details, 1)
	details := domain.RateLimitExceededDetails{}
	err = json.Unmarshal(errResp.Details[0], &details)
	require.NoError(err)
	require.EqualValues(0, details.Remaining)
	require.True(details.ResetAt.After(time.Now()))
	require.EqualValues(gateway.PurchaseUrl, details.PurchaseUrl)
}

func (s *AcceptanceTestSuite) TestPayerIsChargedPerInvocation() {
	test, require := test.New(s.T())
	gateway := conf.Gateway{PricePerRequest: 5}
	env := s.environment(test, gateway, markdownUpstream(nil, nil), payerResolver(100))

	resp, _ := s.get(env.srv.URL+"/api/weather.md", payerToken)
	require.EqualValues(http.StatusOK, resp.StatusCode)

	charges := env.charges.all()
	require.Len(charges, 1)
	require.EqualValues("caller-1", charges[0].CallerId)
	require.EqualValues(5, charges[0].AmountMinorUnits)
	require.True(charges[0].Immediate)
}

func (s *AcceptanceTestSuite) TestHandlerPriceOverride() {
	test, require := test.New(s.T())
	header := http.Header{}
	header.Set("X-Price", "10")
	env := s.environment(test, conf.Gateway{PricePerRequest: 1}, markdownUpstream(nil, header), payerResolver(100))

	resp, _ := s.get(env.srv.URL+"/api/weather.md", payerToken)
	require.EqualValues(http.StatusOK, resp.StatusCode)

	charges := env.charges.all()
	require.Len(charges, 1)
	require.EqualValues(10, charges[0].AmountMinorUnits)
}

func (s *AcceptanceTestSuite) TestInsufficientBalance() {
	test, require := test.New(s.T())
	gateway := conf.Gateway{PricePerRequest: 5, PurchaseUrl: "https://pay.example/topup"}
	env := s.environment(test, gateway, markdownUpstream(nil, nil), payerResolver(3))

	resp, body := s.get(env.srv.URL+"/api/weather.md", payerToken)
	require.EqualValues(http.StatusPaymentRequired, resp.StatusCode)
	errResp := errorResponse{}
	err := json.Unmarshal(body, &errResp)
	require.NoError(err)
	require.EqualValues("insufficient balance", errResp.ErrorMessage)
	require.Empty(env.charges.all())
}

func (s *AcceptanceTestSuite) TestPrivateResponseIsNotCached() {
	test, require := test.New(s.T())
	header := http.Header{}
	header.Set("Cache-Control", "private")
	hit := 0
	env := s.environment(test, conf.Gateway{}, markdownUpstream(&hit, header), anonymousResolver)

	resp, _ := s.get(env.srv.URL+"/api/secret.md", "")
	require.EqualValues(domain.CacheMiss, resp.Header.Get("X-Cache"))

	time.Sleep(300 * time.Millisecond)

	resp, _ = s.get(env.srv.URL+"/api/secret.md", "")
	require.EqualValues(domain.CacheMiss, resp.Header.Get("X-Cache"))
	require.EqualValues(2, hit)
}

func (s *AcceptanceTestSuite) TestHandledInfrastructureRoute() {
	test, require := test.New(s.T())
	resolver := func(req domain.ResolveSessionRequest) domain.ResolveSessionResponse {
		if req.Path == "/webhook" {
			return domain.ResolveSessionResponse{
				Handled: true,
				Response: &domain.RawResponse{
					StatusCode:  http.StatusOK,
					ContentType: "application/json",
					Body:        []byte(`{"accepted":true}`),
				},
			}
		}
		return domain.ResolveSessionResponse{Session: &domain.Session{}}
	}
	env := s.environment(test, conf.Gateway{}, markdownUpstream(nil, nil), resolver)

	resp, body := s.get(env.srv.URL+"/api/webhook", "")
	require.EqualValues(http.StatusOK, resp.StatusCode)
	require.EqualValues("application/json", resp.Header.Get("Content-Type"))
	require.JSONEq(`{"accepted":true}`, string(body))
}
