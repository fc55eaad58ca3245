package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"parkadmin/internal/action"
	"parkadmin/internal/config"
	"parkadmin/internal/domain"
	"parkadmin/internal/gateway"
	"parkadmin/internal/repository"
	"parkadmin/internal/repository/sqlite"
	"parkadmin/internal/session"
	"parkadmin/internal/templates"
)

const cookieName = "parkadmin_session"

// fakeBackend serves canned responses for one location and records every
// call as "METHOD path"
type fakeBackend struct {
	t *testing.T

	mu    sync.Mutex
	calls []string
}

func (b *fakeBackend) record(r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
}

// called reports whether a call containing fragment was made
func (b *fakeBackend) called(fragment string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.calls {
		if strings.Contains(c, fragment) {
			return true
		}
	}
	return false
}

func (b *fakeBackend) token(email, scope string) string {
	claims := jwt.MapClaims{
		"sub":    email,
		"userId": "u-" + strings.Split(email, "@")[0],
		"scope":  scope,
		"exp":    time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-key"))
	if err != nil {
		b.t.Errorf("sign: %v", err)
	}
	return token
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	w.Header().Set("Content-Type", "application/json")

	path := r.URL.Path
	switch {
	case path == "/identity/auth/token":
		var scope string
		body, _ := io.ReadAll(r.Body)
		switch {
		case strings.Contains(string(body), `"password":"wrong"`):
			http.Error(w, `{"message":"Unauthenticated"}`, http.StatusUnauthorized)
			return
		case strings.Contains(string(body), "admin@"):
			scope = "ADMIN"
		case strings.Contains(string(body), "staff@"):
			scope = "STAFF"
		default:
			scope = "USER"
		}
		email := strings.Split(strings.Split(string(body), `"email":"`)[1], `"`)[0]
		io.WriteString(w, `{"code":1000,"result":{"token":"`+b.token(email, scope)+`"}}`)

	case path == "/app-data-service/tickets/pageable/find":
		io.WriteString(w, `{"content":[
			{"ticket":{"id":"t-upcoming","bookingId":"b-77","status":"PAID","locationId":"loc-1","endDateTime":"2099-01-01T10:00:00"},"slotNumber":"3","zoneGate":"A"},
			{"ticket":{"id":"t-cancelled","bookingId":"b-78","status":"CANCELLED","locationId":"loc-1","endDateTime":"2099-01-01T10:00:00"}}
		],"totalElements":2,"totalPages":1}`)
	case path == "/app-data-service/tickets/checkin-requests":
		io.WriteString(w, `{"content":[{"id":"r1","ticket":{"id":"t-arriving","status":"PAID","locationId":"loc-1"}}],"totalElements":1}`)
	case path == "/app-data-service/tickets/checkout-requests",
		path == "/app-data-service/tickets/verify-required-change-time":
		io.WriteString(w, `{"content":[],"totalElements":0}`)
	case path == "/app-data-service/tickets/verify-required":
		io.WriteString(w, `{"content":[{
			"parent":{"ticket":{"id":"t-parent","status":"PAID","locationId":"loc-1"}},
			"children":[{"ticket":{"id":"t-child","status":"PAID","locationId":"loc-1","serviceProvidedEnum":"CHARGING",
				"startDateTime":"2099-01-01T09:00:00","endDateTime":"2099-01-01T11:00:00"},"slotNumber":"7","zoneGate":"A"}]
		}],"totalElements":1}`)
	case path == "/app-data-service/slots/find-pageable-slots":
		io.WriteString(w, `{"content":[{"id":"s7","slotNumber":"7","gate":"A","type":"CHARGING","status":"VALID","locationId":"loc-1"}],"totalElements":1,"totalPages":1}`)
	case path == "/app-data-service/slots/valid-by-type":
		io.WriteString(w, `[
			{"id":"s1","slotNumber":"1","gate":"A","type":"CHARGING"},
			{"id":"s2","slotNumber":"2","gate":"B","type":"CHARGING"}
		]`)
	case path == "/app-data-service/tickets/reassign-slot",
		strings.HasPrefix(path, "/app-data-service/tickets/checkin-approve/"):
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

type testEnv struct {
	srv     *Server
	backend *fakeBackend

	mu   sync.Mutex
	skew time.Duration
}

// now is the session store's clock
func (e *testEnv) now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return time.Now().Add(e.skew)
}

// advance moves the session clock forward
func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	e.skew += d
	e.mu.Unlock()
}

// hasState reports whether the server keeps state for a session id
func (e *testEnv) hasState(id string) bool {
	e.srv.mu.Lock()
	defer e.srv.mu.Unlock()
	_, ok := e.srv.states[id]
	return ok
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := &fakeBackend{t: t}
	env := &testEnv{backend: backend}
	upstream := httptest.NewServer(backend)
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		Debug:    true,
		Server:   config.Server{Host: "127.0.0.1", Port: 8080},
		Backend:  config.Backend{BaseURL: upstream.URL, PageSize: 100},
		Session:  config.Session{Secret: "test-secret", CookieName: cookieName, TTLHours: 1},
		Database: config.Database{Path: filepath.Join(t.TempDir(), "test.db")},
	}

	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	repos := &repository.Repositories{
		Sessions: sqlite.NewSessionRepo(db),
		Settings: sqlite.NewSettingsRepo(db),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions, err := session.NewStore(repos.Sessions, session.Config{Secret: "test-secret", TTL: time.Hour, Logger: logger, Now: env.now})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	tmpl, err := templates.NewManager(templates.FS(), false)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	client, err := gateway.NewClient(gateway.ClientConfig{BaseURL: upstream.URL, HTTPClient: upstream.Client(), Logger: logger})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	env.srv = New(cfg, Deps{
		Repos:     repos,
		Sessions:  sessions,
		Templates: tmpl,
		Backend:   client,
		Gate:      action.NewGate(action.Config{Logger: logger}),
		Logger:    logger,
	})
	return env
}

// do sends a request through the full handler chain
func (e *testEnv) do(method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signIn(t *testing.T, email string) *http.Cookie {
	t.Helper()
	rec := e.do(http.MethodPost, "/login", url.Values{"email": {email}, "password": {"secret"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if c := responseCookie(rec, cookieName); c != nil && c.Value != "" {
		return c
	}
	t.Fatal("no session cookie after login")
	return nil
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func flashOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	c := responseCookie(rec, flashCookieName)
	if c == nil {
		return ""
	}
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		t.Fatalf("flash cookie: %v", err)
	}
	return raw
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestLoginLandingDependsOnRole(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/login", url.Values{"email": {"staff@example.com"}, "password": {"secret"}})
	if loc := rec.Header().Get("Location"); loc != "/tickets" {
		t.Errorf("staff landing = %q, want /tickets", loc)
	}

	rec = env.do(http.MethodPost, "/login", url.Values{"email": {"admin@example.com"}, "password": {"secret"}})
	if loc := rec.Header().Get("Location"); loc != "/overview" {
		t.Errorf("admin landing = %q, want /overview", loc)
	}
}

func TestRootFollowsRole(t *testing.T) {
	env := newTestEnv(t)
	staff := env.signIn(t, "staff@example.com")
	admin := env.signIn(t, "admin@example.com")

	if loc := env.do(http.MethodGet, "/", nil, staff).Header().Get("Location"); loc != "/tickets" {
		t.Errorf("staff root = %q, want /tickets", loc)
	}
	if loc := env.do(http.MethodGet, "/", nil, admin).Header().Get("Location"); loc != "/overview" {
		t.Errorf("admin root = %q, want /overview", loc)
	}
	if loc := env.do(http.MethodGet, "/login", nil, staff).Header().Get("Location"); loc != "/tickets" {
		t.Errorf("signed-in staff on /login = %q, want /tickets", loc)
	}
}

func TestLoginRefusesCustomerAccounts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/login", url.Values{"email": {"rider@example.com"}, "password": {"secret"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not allowed to use the dashboard") {
		t.Error("refusal message not shown")
	}
	if c := responseCookie(rec, cookieName); c != nil && c.Value != "" {
		t.Error("customer account got a session cookie")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/login", url.Values{"email": {"staff@example.com"}, "password": {"wrong"}})
	if !strings.Contains(rec.Body.String(), "Invalid email or password.") {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/login", url.Values{"email": {"not-an-email"}, "password": {"x"}})
	if !strings.Contains(rec.Body.String(), "Please enter a valid email and password.") {
		t.Error("validation message not shown")
	}
}

func TestPagesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/", "/tickets", "/invoices", "/staff"} {
		rec := env.do(http.MethodGet, target, nil)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Errorf("%s: %d -> %q", target, rec.Code, rec.Header().Get("Location"))
		}
	}

	rec := env.do(http.MethodGet, "/tickets", nil, &http.Cookie{Name: cookieName, Value: "forged"})
	if rec.Header().Get("Location") != "/login" {
		t.Errorf("unknown session id was accepted")
	}
}

func TestAdminPagesForbidStaff(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")

	for _, target := range []string{"/overview", "/invoices", "/revenue", "/vouchers", "/staff", "/locations/new"} {
		if rec := env.do(http.MethodGet, target, nil, cookie); rec.Code != http.StatusForbidden {
			t.Errorf("%s: status = %d, want 403", target, rec.Code)
		}
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")

	if rec := env.do(http.MethodPost, "/logout", nil, cookie); rec.Header().Get("Location") != "/login" {
		t.Fatalf("logout redirect = %q", rec.Header().Get("Location"))
	}
	if rec := env.do(http.MethodGet, "/tickets", nil, cookie); rec.Header().Get("Location") != "/login" {
		t.Error("session still valid after logout")
	}
}

func TestExpiredSessionReleasesState(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")
	selectLocation(t, env, cookie)

	if rec := env.do(http.MethodGet, "/tickets", nil, cookie); rec.Code != http.StatusOK {
		t.Fatalf("board status = %d", rec.Code)
	}
	if !env.hasState(cookie.Value) {
		t.Fatal("board visit kept no session state")
	}

	env.advance(2 * time.Hour)
	if rec := env.do(http.MethodGet, "/tickets", nil, cookie); rec.Header().Get("Location") != "/login" {
		t.Fatalf("expired session redirect = %q", rec.Header().Get("Location"))
	}
	if env.hasState(cookie.Value) {
		t.Error("state of expired session still held")
	}
}

func TestSweepReleasesState(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")
	selectLocation(t, env, cookie)
	env.do(http.MethodGet, "/tickets", nil, cookie)

	other := env.signIn(t, "admin@example.com")
	if env.hasState(other.Value) {
		t.Fatal("admin has state before visiting the board")
	}

	n, err := env.srv.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 || !env.hasState(cookie.Value) {
		t.Fatalf("live session swept: n = %d", n)
	}

	env.advance(2 * time.Hour)
	n, err = env.srv.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d sessions, want 2", n)
	}
	if env.hasState(cookie.Value) {
		t.Error("state of swept session still held")
	}
}

func TestTicketBoardNeedsLocation(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")

	rec := env.do(http.MethodGet, "/tickets", nil, cookie)
	if rec.Header().Get("Location") != "/locations" {
		t.Fatalf("redirect = %q", rec.Header().Get("Location"))
	}
	if flash := flashOf(t, rec); !strings.HasPrefix(flash, "info|") {
		t.Errorf("flash = %q", flash)
	}
}

func selectLocation(t *testing.T, env *testEnv, cookie *http.Cookie) {
	t.Helper()
	rec := env.do(http.MethodPost, "/locations/select", url.Values{"location_id": {"loc-1"}}, cookie)
	if rec.Header().Get("Location") != "/tickets" {
		t.Fatalf("select redirect = %q", rec.Header().Get("Location"))
	}
}

func TestTicketBoardTabs(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")
	selectLocation(t, env, cookie)

	rec := env.do(http.MethodGet, "/tickets", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{"Up Coming (1)", "Check in (1)", "Extend (1)", "Check out (0)", "b-77"} {
		if !strings.Contains(body, want) {
			t.Errorf("board missing %q", want)
		}
	}
	if strings.Contains(body, "b-78") {
		t.Error("cancelled ticket listed")
	}

	rec = env.do(http.MethodGet, "/tickets?tab=check-in", nil, cookie)
	if !strings.Contains(rec.Body.String(), `value="r1"`) {
		t.Error("check-in tab does not offer the request")
	}
}

func TestActionWaitsForConfirmation(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")
	selectLocation(t, env, cookie)

	rec := env.do(http.MethodPost, "/actions", url.Values{
		"kind":      {string(action.CheckinApprove)},
		"id":        {"r1"},
		"return_to": {"/tickets?tab=check-in"},
	}, cookie)
	prompt := rec.Header().Get("Location")
	if rec.Code != http.StatusSeeOther || !strings.HasPrefix(prompt, "/actions/") {
		t.Fatalf("prompt = %d %q", rec.Code, prompt)
	}
	if env.backend.called("checkin-approve") {
		t.Fatal("backend called before confirmation")
	}

	rec = env.do(http.MethodGet, prompt, nil, cookie)
	if !strings.Contains(rec.Body.String(), "Confirm Check-in") {
		t.Errorf("confirmation page = %s", rec.Body.String())
	}
	if env.backend.called("checkin-approve") {
		t.Fatal("backend called by showing the prompt")
	}

	rec = env.do(http.MethodPost, prompt+"/confirm", nil, cookie)
	if rec.Header().Get("Location") != "/tickets?tab=check-in" {
		t.Errorf("confirm redirect = %q", rec.Header().Get("Location"))
	}
	if !env.backend.called("POST /app-data-service/tickets/checkin-approve/r1") {
		t.Error("approval not sent after confirmation")
	}
	if flash := flashOf(t, rec); flash != "success|Check-in approved" {
		t.Errorf("flash = %q", flash)
	}

	// The prompt is single use
	rec = env.do(http.MethodPost, prompt+"/confirm", nil, cookie)
	if rec.Header().Get("Location") != "/tickets" {
		t.Errorf("second confirm redirect = %q", rec.Header().Get("Location"))
	}
}

func TestActionCancelSendsNothing(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")

	rec := env.do(http.MethodPost, "/actions", url.Values{
		"kind":      {string(action.CheckinApprove)},
		"id":        {"r1"},
		"return_to": {"https://evil.example/"},
	}, cookie)
	prompt := rec.Header().Get("Location")

	rec = env.do(http.MethodPost, prompt+"/cancel", nil, cookie)
	if rec.Header().Get("Location") != "/" {
		t.Errorf("cancel redirect = %q, want the local fallback", rec.Header().Get("Location"))
	}
	if env.backend.called("checkin-approve") {
		t.Error("cancelled action reached the backend")
	}
}

func TestActionPromptsAreOwnedBySession(t *testing.T) {
	env := newTestEnv(t)
	staff := env.signIn(t, "staff@example.com")
	admin := env.signIn(t, "admin@example.com")

	rec := env.do(http.MethodPost, "/actions", url.Values{"kind": {string(action.CheckinApprove)}, "id": {"r1"}}, staff)
	prompt := rec.Header().Get("Location")

	env.do(http.MethodPost, prompt+"/confirm", nil, admin)
	if env.backend.called("checkin-approve") {
		t.Error("another session confirmed the prompt")
	}
}

func TestUnknownActionKind(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")

	rec := env.do(http.MethodPost, "/actions", url.Values{"kind": {"delete-everything"}, "id": {"x"}}, cookie)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestReassignFlow(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")
	selectLocation(t, env, cookie)

	// Load the board so the conflicted ticket is known
	if rec := env.do(http.MethodGet, "/tickets?tab=extend", nil, cookie); rec.Code != http.StatusOK {
		t.Fatalf("board status = %d", rec.Code)
	}

	rec := env.do(http.MethodPost, "/tickets/t-child/reassign", nil, cookie)
	if rec.Header().Get("Location") != "/reassign" {
		t.Fatalf("start redirect = %q, flash = %q", rec.Header().Get("Location"), flashOf(t, rec))
	}

	rec = env.do(http.MethodGet, "/reassign", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("picker status = %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "<h2>A</h2>") || !strings.Contains(body, "<h2>B</h2>") {
		t.Errorf("picker does not group by gate: %s", body)
	}

	// Nothing selected yet, and gate B is not selectable for a gate A ticket
	env.do(http.MethodPost, "/reassign/select", url.Values{"slot_id": {"s2"}}, cookie)
	rec = env.do(http.MethodPost, "/reassign/confirm", nil, cookie)
	if rec.Header().Get("Location") != "/reassign" {
		t.Fatalf("confirm without selection redirect = %q", rec.Header().Get("Location"))
	}
	if env.backend.called("reassign-slot") {
		t.Fatal("reassign sent without a selection")
	}

	env.do(http.MethodPost, "/reassign/select", url.Values{"slot_id": {"s1"}}, cookie)
	rec = env.do(http.MethodPost, "/reassign/confirm", nil, cookie)
	if rec.Header().Get("Location") != extendTabURL+"&refresh=1" {
		t.Errorf("confirm redirect = %q", rec.Header().Get("Location"))
	}
	if !env.backend.called("PATCH /app-data-service/tickets/reassign-slot") {
		t.Error("reassign not sent")
	}
	if flash := flashOf(t, rec); flash != "success|Slot reassigned successfully" {
		t.Errorf("flash = %q", flash)
	}

	// The workflow is idle again
	rec = env.do(http.MethodGet, "/reassign", nil, cookie)
	if rec.Header().Get("Location") != extendTabURL {
		t.Errorf("idle picker redirect = %q", rec.Header().Get("Location"))
	}
}

func TestReassignUnknownTicket(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")

	rec := env.do(http.MethodPost, "/tickets/nope/reassign", nil, cookie)
	if rec.Header().Get("Location") != extendTabURL {
		t.Errorf("redirect = %q", rec.Header().Get("Location"))
	}
	if env.backend.called("valid-by-type") {
		t.Error("slots fetched for a ticket not on the board")
	}
}

func TestTicketQR(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "staff@example.com")

	rec := env.do(http.MethodGet, "/tickets/t-upcoming/qr.png", nil, cookie)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("qr = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.HasPrefix(rec.Body.String(), "\x89PNG") {
		t.Error("body is not a PNG")
	}
}

func TestSlotsPageOffersToggle(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signIn(t, "admin@example.com")

	rec := env.do(http.MethodGet, "/locations/loc-1/slots", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `value="slot-toggle"`) || !strings.Contains(body, `value="s7"`) {
		t.Error("slot toggle action missing")
	}
}

func TestFlashRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	setFlash(rec, "warning", "Select a slot first.")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	got := popFlash(httptest.NewRecorder(), req)
	if got == nil || got.Type != "warning" || got.Message != "Select a slot first." {
		t.Fatalf("popFlash = %+v", got)
	}

	if popFlash(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)) != nil {
		t.Error("flash without cookie")
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/tickets?tab=extend", "/tickets?tab=extend"},
		{"", "/"},
		{"https://evil.example", "/"},
		{"//evil.example", "/"},
		{`/\evil.example`, "/"},
	}
	for _, tt := range tests {
		if got := localPath(tt.in, "/"); got != tt.want {
			t.Errorf("localPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseGateLayout(t *testing.T) {
	gates, err := parseGateLayout("a=4, B=2;\nA=1")
	if err != nil {
		t.Fatalf("parseGateLayout: %v", err)
	}
	if gates["A"] != 5 || gates["B"] != 2 || len(gates) != 2 {
		t.Errorf("gates = %v", gates)
	}

	for _, bad := range []string{"A", "A=0", "=3", "B=x"} {
		if _, err := parseGateLayout(bad); err == nil {
			t.Errorf("parseGateLayout(%q) accepted", bad)
		}
	}
}

func TestMixOf(t *testing.T) {
	locations := []domain.Location{
		{ID: "1", Services: []domain.ServiceType{domain.ServiceParking}},
		{ID: "2", Services: []domain.ServiceType{domain.ServiceCharging}},
		{ID: "3", Services: []domain.ServiceType{domain.ServiceParking, domain.ServiceCharging}},
		{ID: "4", Services: []domain.ServiceType{domain.ServiceParking}},
		{ID: "5"},
	}
	mix := mixOf(locations)
	if mix.ParkingOnly != 2 || mix.ChargingOnly != 1 || mix.Both != 1 {
		t.Errorf("mix = %+v", mix)
	}
}

func TestNewLocationFromValidates(t *testing.T) {
	env := newTestEnv(t)

	_, problems := env.srv.newLocationFrom(locationForm{Name: "Depot", Address: "1 Main St", Longitude: "200", Latitude: "10"})
	if len(problems) == 0 {
		t.Error("out-of-range longitude accepted")
	}

	location, problems := env.srv.newLocationFrom(locationForm{
		Name: "Depot", Address: "1 Main St", Longitude: "106.7", Latitude: "10.8",
		Charging: true, GateLayout: "A=4",
	})
	if len(problems) != 0 {
		t.Fatalf("problems = %v", problems)
	}
	if len(location.Services) != 1 || location.ChargingGateDistribution["A"] != 4 {
		t.Errorf("location = %+v", location)
	}
}

func TestNewVoucherFromValidates(t *testing.T) {
	env := newTestEnv(t)
	form := voucherForm{
		Code: "spring", Title: "Spring", DiscountAmount: "10", MinimumSpent: "0",
		MaxPerUser: "1", TotalLimit: "100", ValidFrom: "2026-10-01", ValidUntil: "2026-10-31",
	}

	voucher, problems := env.srv.newVoucherFrom(form)
	if len(problems) != 0 {
		t.Fatalf("problems = %v", problems)
	}
	if voucher.Code != "SPRING" {
		t.Errorf("code = %q", voucher.Code)
	}

	form.Percentage, form.DiscountAmount = true, "150"
	if _, problems := env.srv.newVoucherFrom(form); len(problems) == 0 {
		t.Error("percentage over 100 accepted")
	}

	form.Percentage, form.DiscountAmount = false, "10"
	form.ValidUntil = "2026-09-01"
	if _, problems := env.srv.newVoucherFrom(form); len(problems) == 0 {
		t.Error("window ending before it starts accepted")
	}
}
