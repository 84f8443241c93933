package integration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"fieldlink/internal/accounts"
	"fieldlink/internal/audit"
	"fieldlink/internal/config"
	"fieldlink/internal/credentials"
	"fieldlink/internal/oauth"
)

// routeDoer dispatches fake vendor responses by method+path and counts
// every request so tests can assert on network behavior.
type routeDoer struct {
	mu       sync.Mutex
	routes   map[string]func(req *http.Request) *http.Response
	requests []string
}

func newRouteDoer() *routeDoer {
	return &routeDoer{routes: map[string]func(*http.Request) *http.Response{}}
}

func (d *routeDoer) on(method, path string, fn func(req *http.Request) *http.Response) {
	d.routes[method+" "+path] = fn
}

func (d *routeDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	key := req.Method + " " + req.URL.Path
	d.requests = append(d.requests, key)
	fn, ok := d.routes[key]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
	}
	return fn(req), nil
}

func (d *routeDoer) count(method, path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, r := range d.requests {
		if r == method+" "+path {
			n++
		}
	}
	return n
}

func (d *routeDoer) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.requests)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// memoryConsumer is the in-memory stand-in for the redis consume-once marker.
type memoryConsumer struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memoryConsumer) consume(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

type testEnv struct {
	facade   *Facade
	doer     *routeDoer
	creds    *credentials.MemoryStore
	accounts *accounts.MemoryStore
	records  *accounts.MemoryRecordStore
	auditLog *audit.MemoryRepo
	states   *oauth.StateCodec
	clock    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.VendorConfig{
		Provider:     "ringcentral",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURI:  "https://app.example/oauth/callback",
		Scopes:       []string{"ReadCallLog", "SMS"},
		AuthURL:      "https://vendor.example/oauth/authorize",
		TokenURL:     "https://vendor.example/oauth/token",
		RevokeURL:    "https://vendor.example/oauth/revoke",
		UserInfoURL:  "https://vendor.example/userinfo",
		APIBaseURL:   "https://api.vendor.example",
	}

	doer := newRouteDoer()
	client, err := oauth.NewClient(cfg, doer)
	if err != nil {
		t.Fatalf("oauth client: %v", err)
	}
	states, err := oauth.NewStateCodec(config.StateConfig{Secret: "state-secret", MaxAge: 10 * time.Minute})
	if err != nil {
		t.Fatalf("state codec: %v", err)
	}
	api, err := NewVendorAPI(cfg.APIBaseURL, doer)
	if err != nil {
		t.Fatalf("vendor api: %v", err)
	}

	credStore := credentials.NewMemoryStore()
	refresher := credentials.NewRefresher(credStore, client.Refresh)
	acctStore := accounts.NewMemoryStore()
	recStore := accounts.NewMemoryRecordStore()
	auditRepo := audit.NewMemoryRepo()

	env := &testEnv{
		doer:     doer,
		creds:    credStore,
		accounts: acctStore,
		records:  recStore,
		auditLog: auditRepo,
		states:   states,
		clock:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	client.Now = func() time.Time { return env.clock }
	states.Now = func() time.Time { return env.clock }
	refresher.Now = func() time.Time { return env.clock }

	consumer := &memoryConsumer{}
	facade, err := NewFacade(Deps{
		Vendor:       cfg,
		OAuth:        client,
		States:       states,
		API:          api,
		Credentials:  credStore,
		Refresher:    refresher,
		Accounts:     acctStore,
		Seen:         accounts.NewMemorySeenIndex(),
		Records:      recStore,
		ConsumeState: consumer.consume,
		Audit:        audit.NewService(auditRepo),
	})
	if err != nil {
		t.Fatalf("facade: %v", err)
	}
	facade.Now = func() time.Time { return env.clock }
	env.facade = facade
	return env
}

func (e *testEnv) stubTokenEndpoint(accessToken string) {
	e.doer.on(http.MethodPost, "/oauth/token", func(req *http.Request) *http.Response {
		return jsonResponse(200, fmt.Sprintf(
			`{"access_token":%q,"refresh_token":"rt-1","token_type":"bearer","expires_in":3600}`, accessToken))
	})
	e.doer.on(http.MethodGet, "/userinfo", func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"id":"vnd-77","name":"Front Office","email":"office@example.com"}`)
	})
}

func (e *testEnv) putCredential(t *testing.T, tenantID string, expiresIn time.Duration, refreshToken string) {
	t.Helper()
	exp := e.clock.Add(expiresIn)
	err := e.creds.Put(context.Background(), tenantID, credentials.Credential{
		AccessToken:  "at-live",
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresAt:    &exp,
		ObtainedAt:   e.clock,
	})
	if err != nil {
		t.Fatalf("seed credential: %v", err)
	}
}

func TestHappyPathConnectCallbackAuthenticated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.stubTokenEndpoint("at-1")

	authURL, err := env.facade.GenerateAuthURL(ctx, "t1", "u1")
	if err != nil {
		t.Fatalf("generate url: %v", err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := parsed.Query()
	if q.Get("client_id") != "client-1" || q.Get("response_type") != "code" {
		t.Fatalf("unexpected query: %v", q)
	}
	if q.Get("scope") != "ReadCallLog SMS" {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
	state := q.Get("state")
	if state == "" {
		t.Fatalf("no state in url")
	}

	acct, err := env.facade.CompleteAuthorization(ctx, "t1", "code-1", state)
	if err != nil {
		t.Fatalf("complete authorization: %v", err)
	}
	if acct.Status != accounts.StatusConnected {
		t.Fatalf("status = %q, want connected", acct.Status)
	}
	if acct.VendorUserID != "vnd-77" {
		t.Fatalf("vendor user = %q", acct.VendorUserID)
	}

	ok, err := env.facade.IsAuthenticated(ctx, "t1")
	if err != nil || !ok {
		t.Fatalf("IsAuthenticated = %v, %v; want true", ok, err)
	}

	// Stored expiry is absolute, computed at exchange time.
	cred, _ := env.creds.Get(ctx, "t1")
	if cred.ExpiresAt == nil || !cred.ExpiresAt.Equal(env.clock.Add(time.Hour)) {
		t.Fatalf("expires_at = %v", cred.ExpiresAt)
	}

	events := env.auditLog.Events()
	if len(events) != 1 || events[0].Type != audit.EventTypeConnected {
		t.Fatalf("audit events = %+v", events)
	}
}

func TestCallbackRejectsReplayedState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.stubTokenEndpoint("at-1")

	url1, _ := env.facade.GenerateAuthURL(ctx, "t1", "u1")
	parsed, _ := url.Parse(url1)
	state := parsed.Query().Get("state")

	if _, err := env.facade.CompleteAuthorization(ctx, "t1", "code-1", state); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	_, err := env.facade.CompleteAuthorization(ctx, "t1", "code-2", state)
	if !errors.Is(err, oauth.ErrInvalidState) {
		t.Fatalf("replay: got %v, want ErrInvalidState", err)
	}
}

func TestCallbackRejectsForeignTenantState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	url1, _ := env.facade.GenerateAuthURL(ctx, "t1", "u1")
	parsed, _ := url.Parse(url1)
	state := parsed.Query().Get("state")

	_, err := env.facade.CompleteAuthorization(ctx, "t2", "code-1", state)
	if !errors.Is(err, oauth.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
	if env.doer.total() != 0 {
		t.Fatalf("network touched on rejected state: %v", env.doer.requests)
	}
}

func TestMalformedStateNeverTouchesNetwork(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, state := range []string{"", "garbage", "v1.notbase64.x", "v1.e30.forgedsig"} {
		_, err := env.facade.CompleteAuthorization(ctx, "t1", "code-1", state)
		if !errors.Is(err, oauth.ErrInvalidState) {
			t.Fatalf("state %q: got %v, want ErrInvalidState", state, err)
		}
	}
	if env.doer.total() != 0 {
		t.Fatalf("network touched: %v", env.doer.requests)
	}
}

func TestWithFreshTokenSkipsRefreshWhenValid(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putCredential(t, "t1", time.Hour, "rt-1")

	var got string
	err := env.facade.WithFreshToken(ctx, "t1", func(ctx context.Context, token string) error {
		got = token
		return nil
	})
	if err != nil {
		t.Fatalf("with fresh token: %v", err)
	}
	if got != "at-live" {
		t.Fatalf("token = %q", got)
	}
	if env.doer.count(http.MethodPost, "/oauth/token") != 0 {
		t.Fatalf("unexpected refresh")
	}
}

func TestWithFreshTokenRefreshesExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putCredential(t, "t1", -time.Minute, "rt-1")
	env.doer.on(http.MethodPost, "/oauth/token", func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"access_token":"at-new","token_type":"bearer","expires_in":3600}`)
	})

	var got string
	err := env.facade.WithFreshToken(ctx, "t1", func(ctx context.Context, token string) error {
		got = token
		return nil
	})
	if err != nil {
		t.Fatalf("with fresh token: %v", err)
	}
	if got != "at-new" {
		t.Fatalf("token = %q", got)
	}
	if n := env.doer.count(http.MethodPost, "/oauth/token"); n != 1 {
		t.Fatalf("refresh calls = %d, want 1", n)
	}
}

func TestWithFreshTokenRetriesOnceOn401(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putCredential(t, "t1", time.Hour, "rt-1")
	env.doer.on(http.MethodPost, "/oauth/token", func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"access_token":"at-new","token_type":"bearer","expires_in":3600}`)
	})

	attempts := 0
	err := env.facade.WithFreshToken(ctx, "t1", func(ctx context.Context, token string) error {
		attempts++
		if token == "at-live" {
			return &APIError{Status: 401}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("with fresh token: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	if n := env.doer.count(http.MethodPost, "/oauth/token"); n != 1 {
		t.Fatalf("refresh calls = %d, want 1", n)
	}
}

func TestWithFreshTokenSurfacesSecond401(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putCredential(t, "t1", time.Hour, "rt-1")
	env.doer.on(http.MethodPost, "/oauth/token", func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"access_token":"at-new","token_type":"bearer","expires_in":3600}`)
	})

	attempts := 0
	err := env.facade.WithFreshToken(ctx, "t1", func(ctx context.Context, token string) error {
		attempts++
		return &APIError{Status: 401}
	})
	if !isUnauthorized(err) {
		t.Fatalf("got %v, want 401 APIError", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want exactly 2 (one retry)", attempts)
	}
}

func TestRejectedRefreshFlipsAccountAndSkipsAction(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putCredential(t, "t1", -time.Minute, "rt-dead")
	if err := env.accounts.Put(ctx, accounts.VendorAccount{
		TenantID: "t1", Provider: "ringcentral", Status: accounts.StatusConnected,
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	env.doer.on(http.MethodPost, "/oauth/token", func(req *http.Request) *http.Response {
		return jsonResponse(400, `{"error":"invalid_grant"}`)
	})

	invoked := false
	err := env.facade.WithFreshToken(ctx, "t1", func(ctx context.Context, token string) error {
		invoked = true
		return nil
	})
	if !errors.Is(err, oauth.ErrRefreshRejected) {
		t.Fatalf("got %v, want ErrRefreshRejected", err)
	}
	if invoked {
		t.Fatalf("action invoked despite rejected refresh")
	}

	acct, _ := env.accounts.Get(ctx, "t1")
	if acct.Status != accounts.StatusNeedsReauth {
		t.Fatalf("status = %q, want needs_reauth", acct.Status)
	}

	found := false
	for _, e := range env.auditLog.Events() {
		if e.Type == audit.EventTypeReauthRequired {
			found = true
		}
	}
	if !found {
		t.Fatalf("reauth_required not audited")
	}
}

func TestListCallsPaginatesAndDedups(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putCredential(t, "t1", time.Hour, "rt-1")

	page := 0
	env.doer.on(http.MethodGet, "/v1/calls", func(req *http.Request) *http.Response {
		page++
		if req.URL.Query().Get("cursor") == "" && page == 1 {
			return jsonResponse(200, `{"records":[
				{"id":"c-1","direction":"Inbound","from":{"phoneNumber":"+15550001111","name":"Dana"},"to":{"phoneNumber":"+15550002222"},"state":"Completed","startTime":"2025-06-01T09:00:00Z","duration":60}
			],"next_cursor":"p2"}`)
		}
		return jsonResponse(200, `{"records":[
			{"id":"c-2","direction":"Outbound","from":{"phoneNumber":"+15550002222"},"to":{"phoneNumber":"+15550003333"},"state":"NoAnswer","startTime":"2025-06-01T10:00:00Z","duration":0}
		],"next_cursor":""}`)
	})

	recs, err := env.facade.ListCalls(ctx, "t1")
	if err != nil {
		t.Fatalf("list calls: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	for _, r := range recs {
		if r.TenantID != "t1" {
			t.Fatalf("record missing tenant stamp: %+v", r)
		}
	}

	// Second pull sees the same vendor ids; nothing is net-new.
	page = 0
	recs, err = env.facade.ListCalls(ctx, "t1")
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("second pull returned %d records, want 0", len(recs))
	}

	stored, _ := env.records.ListCalls(ctx, "t1", time.Time{}, time.Time{})
	if len(stored) != 2 {
		t.Fatalf("stored %d records, want 2", len(stored))
	}
}

func TestDemoFallbackOnlyWithoutCredential(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	recs, err := env.facade.ListCalls(ctx, "t-demo")
	if err != nil {
		t.Fatalf("list calls: %v", err)
	}
	if len(recs) == 0 {
		t.Fatalf("expected demo records for unconnected tenant")
	}
	for _, r := range recs {
		if !strings.HasPrefix(r.VendorID, "demo-") {
			t.Fatalf("demo record without demo id: %+v", r)
		}
	}
	if env.doer.total() != 0 {
		t.Fatalf("demo fallback touched network: %v", env.doer.requests)
	}

	// With a live credential the fallback is unreachable.
	env.putCredential(t, "t-live", time.Hour, "rt-1")
	env.doer.on(http.MethodGet, "/v1/calls", func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"records":[],"next_cursor":""}`)
	})
	recs, err = env.facade.ListCalls(ctx, "t-live")
	if err != nil {
		t.Fatalf("list calls: %v", err)
	}
	for _, r := range recs {
		if strings.HasPrefix(r.VendorID, "demo-") {
			t.Fatalf("demo record served to connected tenant")
		}
	}
}

func TestDemoFallbackLeavesStoresUntouched(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	first, err := env.facade.ListCalls(ctx, "t-demo")
	if err != nil {
		t.Fatalf("first list calls: %v", err)
	}
	second, err := env.facade.ListCalls(ctx, "t-demo")
	if err != nil {
		t.Fatalf("second list calls: %v", err)
	}
	if len(first) == 0 || len(second) != len(first) {
		t.Fatalf("demo dataset must stay stable across pulls: first=%d second=%d", len(first), len(second))
	}

	msgs, err := env.facade.ListMessages(ctx, "t-demo")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) == 0 {
		t.Fatalf("expected demo messages for unconnected tenant")
	}

	until := env.clock.Add(24 * time.Hour)
	persistedCalls, err := env.records.ListCalls(ctx, "t-demo", time.Time{}, until)
	if err != nil {
		t.Fatalf("record store calls: %v", err)
	}
	persistedMsgs, err := env.records.ListMessages(ctx, "t-demo", time.Time{}, until)
	if err != nil {
		t.Fatalf("record store messages: %v", err)
	}
	if len(persistedCalls) != 0 || len(persistedMsgs) != 0 {
		t.Fatalf("demo records persisted: calls=%d messages=%d", len(persistedCalls), len(persistedMsgs))
	}
}

func TestSyncDemoTenantSkipsRunMetadata(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	if err := env.accounts.Put(ctx, accounts.VendorAccount{
		TenantID: "t-demo", Provider: "ringcentral", Status: accounts.StatusPending,
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	result, err := env.facade.Sync(ctx, "t-demo", TriggerManual)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.NewCalls == 0 || result.NewMessages == 0 {
		t.Fatalf("demo sync should still surface records: %+v", result)
	}

	acct, err := env.accounts.Get(ctx, "t-demo")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acct.LastSyncAt != nil {
		t.Fatalf("demo run recorded a sync time: %v", acct.LastSyncAt)
	}
	for _, e := range env.auditLog.Events() {
		if e.Type == audit.EventTypeSyncCompleted {
			t.Fatalf("demo run audited as completed sync: %+v", e)
		}
	}
}

func TestSendMessageRedactsFailures(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putCredential(t, "t1", time.Hour, "rt-1")
	env.doer.on(http.MethodPost, "/v1/messages", func(req *http.Request) *http.Response {
		return jsonResponse(500, `{"error":"boom","token_echo":"at-live"}`)
	})

	_, err := env.facade.SendMessage(ctx, "t1", "+15550009999", "secret appointment details")
	var sendErr *SendFailedError
	if !errors.As(err, &sendErr) {
		t.Fatalf("got %T, want *SendFailedError", err)
	}
	if sendErr.To != "+15550009999" {
		t.Fatalf("addressing lost: %+v", sendErr)
	}
	msg := err.Error()
	if strings.Contains(msg, "at-live") || strings.Contains(msg, "secret appointment") {
		t.Fatalf("error leaks payload or token: %q", msg)
	}
}

func TestSendMessageReturnsVendorID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putCredential(t, "t1", time.Hour, "rt-1")
	env.doer.on(http.MethodPost, "/v1/messages", func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"id":"msg-42"}`)
	})

	id, err := env.facade.SendMessage(ctx, "t1", "+15550009999", "on our way")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if id != "msg-42" {
		t.Fatalf("id = %q", id)
	}
}

func TestSendMessageWithoutCredential(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.facade.SendMessage(context.Background(), "t1", "+15550009999", "hello")
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("got %v, want ErrNotConnected", err)
	}
}

func TestDisconnectRevokesAndDeletes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putCredential(t, "t1", time.Hour, "rt-1")
	if err := env.accounts.Put(ctx, accounts.VendorAccount{
		TenantID: "t1", Provider: "ringcentral", Status: accounts.StatusConnected,
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	env.doer.on(http.MethodPost, "/oauth/revoke", func(req *http.Request) *http.Response {
		return jsonResponse(200, `{}`)
	})

	if err := env.facade.Disconnect(ctx, "t1", "u1"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if n := env.doer.count(http.MethodPost, "/oauth/revoke"); n != 1 {
		t.Fatalf("revoke calls = %d", n)
	}
	if _, err := env.creds.Get(ctx, "t1"); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("credential survived disconnect: %v", err)
	}
	acct, _ := env.accounts.Get(ctx, "t1")
	if acct.Status != accounts.StatusDisconnected {
		t.Fatalf("status = %q", acct.Status)
	}
}

func TestDisconnectSurvivesRevokeFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putCredential(t, "t1", time.Hour, "rt-1")
	env.doer.on(http.MethodPost, "/oauth/revoke", func(req *http.Request) *http.Response {
		return jsonResponse(503, `{"error":"down"}`)
	})

	if err := env.facade.Disconnect(ctx, "t1", "u1"); err != nil {
		t.Fatalf("disconnect should not fail on revoke error: %v", err)
	}
	if _, err := env.creds.Get(ctx, "t1"); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("credential not deleted")
	}
}

func TestSyncRecordsRunMetadata(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.putCredential(t, "t1", time.Hour, "rt-1")
	if err := env.accounts.Put(ctx, accounts.VendorAccount{
		TenantID: "t1", Provider: "ringcentral", Status: accounts.StatusConnected,
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	env.doer.on(http.MethodGet, "/v1/calls", func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"records":[
			{"id":"c-1","direction":"Inbound","from":{"phoneNumber":"+15550001111"},"to":{"phoneNumber":"+15550002222"},"state":"Completed","startTime":"2025-06-01T09:00:00Z","duration":30}
		],"next_cursor":""}`)
	})
	env.doer.on(http.MethodGet, "/v1/messages", func(req *http.Request) *http.Response {
		return jsonResponse(200, `{"records":[],"next_cursor":""}`)
	})

	result, err := env.facade.Sync(ctx, "t1", TriggerManual)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if result.NewCalls != 1 || result.NewMessages != 0 {
		t.Fatalf("result = %+v", result)
	}

	acct, _ := env.accounts.Get(ctx, "t1")
	if acct.LastSyncAt == nil || !acct.LastSyncAt.Equal(env.clock) {
		t.Fatalf("last sync = %v", acct.LastSyncAt)
	}

	found := false
	for _, e := range env.auditLog.Events() {
		if e.Type == audit.EventTypeSyncCompleted && strings.Contains(e.Metadata, `"manual"`) {
			found = true
		}
	}
	if !found {
		t.Fatalf("sync completion not audited: %+v", env.auditLog.Events())
	}
}
