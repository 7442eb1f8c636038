package webserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lachlan2k/storefront-gate/internal/apiclient"
	"github.com/lachlan2k/storefront-gate/internal/config"
	"github.com/lachlan2k/storefront-gate/internal/kvstore"
	"github.com/lachlan2k/storefront-gate/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

type fixture struct {
	server  *Webserver
	session *session.Store
	backend *httptest.Server
	seen    chan *http.Request
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, "")
}

// newFixtureWithConfig appends extra top-level TOML keys to the fixture config.
func newFixtureWithConfig(t *testing.T, extra string) *fixture {
	t.Helper()

	seen := make(chan *http.Request, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		clone := r.Clone(context.Background())
		clone.Body = io.NopCloser(strings.NewReader(string(body)))
		seen <- clone

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Backend", "storefront")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(func() {
		backend.Close()
		http.DefaultClient.CloseIdleConnections()
	})

	conf, err := config.Parse([]byte(extra + `
[api]
base_url = "` + backend.URL + `/api"
[session]
backend = "memory"
`))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	sess := session.New(context.Background(), kvstore.NewMemory(), logger)
	api := apiclient.New(conf.API.BaseURL, sess, apiclient.WithLogger(logger))

	return &fixture{
		server:  New(conf, sess, api, logger),
		session: sess,
		backend: backend,
		seen:    seen,
		logs:    logs,
	}
}

func (f *fixture) assertBackendNotCalled(t *testing.T) {
	t.Helper()
	select {
	case r := <-f.seen:
		t.Fatalf("backend called: %s %s", r.Method, r.URL.Path)
	default:
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(path string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func TestPing(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestPublicPageProceeds(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/products/12")
	require.Equal(t, http.StatusOK, rec.Code)

	var page pageRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, "product", page.Route)
	assert.Equal(t, "/products/:id", page.Pattern)
	assert.Equal(t, "none", page.Access)
	assert.Equal(t, map[string]string{"id": "12"}, page.Params)
}

func TestGuardedPageRedirectsToSignin(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/cart?step=2")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?redir="+url.QueryEscape("/cart?step=2"), rec.Header().Get("Location"))

	rec = f.get("/admin/users")
	assert.Equal(t, http.StatusFound, rec.Code)

	// the sign-in page itself is public
	rec = f.get("/login")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminPagesNeedAdminRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.Login(ctx, "abc", "User", "u@shop.test"))
	assert.Equal(t, http.StatusOK, f.get("/orders/3").Code)
	assert.Equal(t, http.StatusFound, f.get("/admin/products").Code)

	require.NoError(t, f.session.Login(ctx, "abc", "Admin", "a@shop.test"))
	assert.Equal(t, http.StatusOK, f.get("/admin/products").Code)
}

func TestLoginLogoutFlow(t *testing.T) {
	f := newFixture(t)

	form := url.Values{
		"token": {"xyz"},
		"role":  {"Admin"},
		"email": {"a@b.com"},
		"redir": {"/admin/sliders"},
	}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := f.do(req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/admin/sliders", rec.Header().Get("Location"))
	assert.True(t, f.session.IsAdmin())

	rec = f.get("/auth")
	require.Equal(t, http.StatusOK, rec.Code)
	var info AuthInfoRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.True(t, info.Authenticated)
	assert.True(t, info.Admin)
	assert.Equal(t, "a@b.com", info.Email)

	rec = f.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.SessionData{}, f.session.Snapshot())
	assert.Equal(t, http.StatusFound, f.get("/admin/sliders").Code)
}

func TestLoginIgnoresOffsiteRedirect(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"token":"abc","role":"User","email":"u@shop.test","redir":"https://evil.test"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var info AuthInfoRes
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.True(t, info.Authenticated)
	assert.False(t, info.Admin)
	require.NotNil(t, info.Persisted)
	assert.True(t, *info.Persisted)
}

func TestAPIProxyAddsBearer(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.Login(context.Background(), "tok123", "User", "u@shop.test"))

	req := httptest.NewRequest(http.MethodPost, "/api/cart/items?qty=2", strings.NewReader(`{"productId":7}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer forged")

	rec := f.do(req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "storefront", rec.Header().Get("X-Backend"))

	upstream := <-f.seen
	assert.Equal(t, http.MethodPost, upstream.Method)
	assert.Equal(t, "/api/cart/items", upstream.URL.Path)
	assert.Equal(t, "qty=2", upstream.URL.RawQuery)
	assert.Equal(t, "Bearer tok123", upstream.Header.Get("Authorization"))
	assert.Equal(t, "application/json", upstream.Header.Get("Accept"))
	body, _ := io.ReadAll(upstream.Body)
	assert.Equal(t, `{"productId":7}`, string(body))
}

func TestAPIProxyWithoutSession(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/api/products")
	assert.Equal(t, http.StatusCreated, rec.Code)

	upstream := <-f.seen
	assert.Empty(t, upstream.Header.Get("Authorization"))
}

func TestMetricsCountDecisions(t *testing.T) {
	f := newFixture(t)

	f.get("/")
	f.get("/cart")
	f.get("/profile")

	rec := f.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_navigation_decisions_total{outcome="proceed"} 1`)
	assert.Contains(t, rec.Body.String(), `storefront_navigation_decisions_total{outcome="redirect"} 2`)
}

func TestCrossOriginProxyRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.Login(context.Background(), "tok123", "User", "u@shop.test"))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"items":[1]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://evil.test")

	rec := f.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	f.assertBackendNotCalled(t)
}

func TestCrossOriginLoginRejected(t *testing.T) {
	f := newFixture(t)

	form := url.Values{"token": {"attacker"}, "role": {"Admin"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "https://evil.test")

	rec := f.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, session.SessionData{}, f.session.Snapshot())

	require.NoError(t, f.session.Login(context.Background(), "tok", "User", "u@shop.test"))
	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Referer", "https://evil.test/page")
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
	assert.True(t, f.session.IsAuthenticated())

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Origin", "null")
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
	assert.True(t, f.session.IsAuthenticated())

	assert.Equal(t, 4, f.logs.FilterMessage("cross-origin request rejected").Len())
}

func TestSameOriginRequestsAllowed(t *testing.T) {
	f := newFixture(t)

	form := url.Values{"token": {"xyz"}, "role": {"User"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	require.Equal(t, http.StatusOK, f.do(req).Code)
	assert.Equal(t, "xyz", f.session.Token())

	req = httptest.NewRequest(http.MethodDelete, "/api/cart/items/3", nil)
	req.Header.Set("Referer", "http://example.com/cart")
	assert.Equal(t, http.StatusCreated, f.do(req).Code)
	assert.Equal(t, http.MethodDelete, (<-f.seen).Method)

	// navigations stay possible from anywhere, the guard decides them
	req = httptest.NewRequest(http.MethodGet, "/products/1", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	assert.Equal(t, http.StatusOK, f.do(req).Code)
}

func TestAllowedOriginAccepted(t *testing.T) {
	f := newFixtureWithConfig(t, `allowed_origins = ["http://localhost:5173"]`)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`))
	req.Header.Set("Origin", "http://localhost:5173")
	assert.Equal(t, http.StatusCreated, f.do(req).Code)
	<-f.seen

	req = httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{}`))
	req.Header.Set("Origin", "https://localhost:5173")
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)
	f.assertBackendNotCalled(t)
}

func TestEscapedParamsDecodedOnce(t *testing.T) {
	f := newFixture(t)

	cases := map[string]string{
		"/products/100%2525":  "100%25",
		"/products/a%2Fb":     "a/b",
		"/products/caf%C3%A9": "café",
	}
	for path, want := range cases {
		t.Run(path, func(t *testing.T) {
			rec := f.get(path)
			require.Equal(t, http.StatusOK, rec.Code)

			var page pageRes
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
			assert.Equal(t, "product", page.Route)
			assert.Equal(t, map[string]string{"id": want}, page.Params)
		})
	}
}

func TestRequestsLoggedWithZap(t *testing.T) {
	f := newFixture(t)

	f.get("/cart")

	redirects := f.logs.FilterMessage("navigation redirected").All()
	require.Len(t, redirects, 1)
	fields := redirects[0].ContextMap()
	assert.Equal(t, "/cart", fields["target"])
	assert.Equal(t, "/login", fields["location"])

	requests := f.logs.FilterMessage("HTTP request").All()
	require.Len(t, requests, 1)
	fields = requests[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/cart", fields["uri"])
	assert.EqualValues(t, http.StatusFound, fields["status"])
	assert.NotEmpty(t, fields["request_id"])
	assert.Equal(t, zapcore.InfoLevel, requests[0].Level)

	f.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Origin", "https://evil.test")
	f.do(req)

	requests = f.logs.FilterMessage("HTTP request").All()
	require.Len(t, requests, 3)
	assert.Equal(t, zapcore.WarnLevel, requests[2].Level)
	assert.EqualValues(t, http.StatusForbidden, requests[2].ContextMap()["status"])
}
