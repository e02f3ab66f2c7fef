package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/autoperf/taudash/internal/config"
	"github.com/autoperf/taudash/internal/profile"
	"github.com/autoperf/taudash/internal/session"
	"github.com/autoperf/taudash/internal/taudb"
	"github.com/autoperf/taudash/internal/testutil/dbtest"
)

// newTestServer returns a server whose logins succeed for dbname "demo.db"
// (backed by the in-memory demo data set) and fail for anything else.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	open := func(ctx context.Context, p taudb.ConnParams) (session.Store, error) {
		if p.Name != "demo.db" {
			return nil, taudb.ErrConnect
		}
		return dbtest.NewDemoDB(t).Store, nil
	}
	sessions := session.NewManager(open, time.Hour, testLogger())
	t.Cleanup(func() { sessions.Close() })

	cfg := &config.Config{
		Server:     config.ServerConfig{APIPort: 8080},
		Datasource: config.DatasourceConfig{Driver: "sqlite3"},
	}
	return NewServer(cfg, sessions, newMockScheduler(), testLogger())
}

func postLogin(t *testing.T, srv *Server, dbname string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{
		"dbhost": {"localhost"},
		"dbname": {dbname},
		"dbuser": {"perf"},
		"dbpass": {"secret"},
	}
	req := httptest.NewRequest("POST", "/api/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

// login logs in to the demo database and returns the session cookie.
func login(t *testing.T, srv *Server) *http.Cookie {
	t.Helper()
	w := postLogin(t, srv, "demo.db")
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatalf("login set no session cookie; body=%s", w.Body.String())
	return nil
}

func get(t *testing.T, srv *Server, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestLoginSucceedSetsCookie(t *testing.T) {
	srv := newTestServer(t)
	w := postLogin(t, srv, "demo.db")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp LoginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != StatusSucceed {
		t.Errorf("status = %q, want Succeed", resp.Status)
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			found = true
			if !c.HttpOnly || c.Value == "" {
				t.Errorf("cookie = %+v", c)
			}
		}
	}
	if !found {
		t.Error("no session cookie set")
	}
}

func TestLoginFailed(t *testing.T) {
	srv := newTestServer(t)
	w := postLogin(t, srv, "unreachable.db")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp LoginResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != StatusFailed {
		t.Errorf("status = %q, want Failed", resp.Status)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("failed login set a cookie")
	}
}

func TestLoggedIn(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/logedIn", "/api/loggedIn"} {
		w := get(t, srv, path, nil)
		var resp LoggedInResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != StatusFail {
			t.Errorf("%s without session = %+v, want Fail", path, resp)
		}
	}

	cookie := login(t, srv)
	w := get(t, srv, "/api/logedIn", cookie)
	var resp LoggedInResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	// The demo store reports its own connection parameters.
	if resp.Status != StatusGood || resp.Driver != "sqlite3" || resp.DBName != ":memory:" {
		t.Errorf("logedIn = %+v", resp)
	}
	if strings.Contains(w.Body.String(), "secret") {
		t.Error("logedIn leaked the password")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	w := get(t, srv, "/api/logout", cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `"Success"` {
		t.Errorf("body = %s, want \"Success\"", got)
	}
	var expired bool
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Error("logout did not expire the cookie")
	}

	if w := get(t, srv, "/api/applications", cookie); w.Code != http.StatusUnauthorized {
		t.Errorf("after logout status = %d, want 401", w.Code)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	srv := newTestServer(t)
	w := get(t, srv, "/api/logout", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestDataEndpointsRequireLogin(t *testing.T) {
	srv := newTestServer(t)
	paths := []string{
		"/api/applications",
		"/api/trials?appName=demo",
		"/api/trials/demo",
		"/api/metrics?trialId=10",
		"/api/threads/10",
		"/api/metadata?trialId=10",
		"/api/profile?metricId=100&threadId=200",
		"/api/profile/200/100",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			w := get(t, srv, path, nil)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error != "not_logged_in" {
				t.Errorf("error = %q, want not_logged_in", resp.Error)
			}
		})
	}
}

func TestHandleApplications(t *testing.T) {
	srv := newTestServer(t)
	w := get(t, srv, "/api/applications", login(t, srv))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got []string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"demo", "lulesh"}, got); diff != "" {
		t.Errorf("applications mismatch (-want +got):\n%s", diff)
	}
}

func TestHandleTrialsPreservesOrder(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	for _, path := range []string{"/api/trials?appName=demo", "/api/trials/demo"} {
		w := get(t, srv, path, cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
		if got := strings.TrimSpace(w.Body.String()); got != `{"10":"trialA","11":"trialB"}` {
			t.Errorf("%s body = %s", path, got)
		}
	}
}

func TestHandleTrialsEscapedAppName(t *testing.T) {
	var trialID int64
	open := func(ctx context.Context, p taudb.ConnParams) (session.Store, error) {
		tdb := dbtest.NewDemoDB(t)
		trialID = tdb.AddTrial(dbtest.TrialOpts{App: "bin/lulesh", Name: "run-64"})
		return tdb.Store, nil
	}
	sessions := session.NewManager(open, time.Hour, testLogger())
	t.Cleanup(func() { sessions.Close() })
	srv := NewServer(&config.Config{Server: config.ServerConfig{APIPort: 8080}}, sessions, newMockScheduler(), testLogger())
	cookie := login(t, srv)

	want := fmt.Sprintf(`{"%d":"run-64"}`, trialID)
	for _, path := range []string{"/api/trials?appName=bin%2Flulesh", "/api/trials/bin%2Flulesh"} {
		w := get(t, srv, path, cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
		if got := strings.TrimSpace(w.Body.String()); got != want {
			t.Errorf("%s body = %s, want %s", path, got, want)
		}
	}
}

func TestHandleTrialsUnknownAppIsEmptyObject(t *testing.T) {
	srv := newTestServer(t)
	w := get(t, srv, "/api/trials?appName=nope", login(t, srv))
	if got := strings.TrimSpace(w.Body.String()); got != `{}` {
		t.Errorf("body = %s, want {}", got)
	}
}

func TestHandleTrialsWithoutAppListsAll(t *testing.T) {
	srv := newTestServer(t)
	w := get(t, srv, "/api/trials", login(t, srv))

	var got profile.Ordered
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	trials, err := got.Trials()
	if err != nil {
		t.Fatal(err)
	}
	if len(trials) != 3 || trials[2].Name != "lulesh-8rank" {
		t.Errorf("trials = %+v", trials)
	}
}

func TestHandleMetricsAndThreads(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	w := get(t, srv, "/api/metrics?trialId=10", cookie)
	if got := strings.TrimSpace(w.Body.String()); got != `{"100":"TIME","101":"PAPI_FP_OPS"}` {
		t.Errorf("metrics body = %s", got)
	}
	w = get(t, srv, "/api/metrics/10", cookie)
	if got := strings.TrimSpace(w.Body.String()); got != `{"100":"TIME","101":"PAPI_FP_OPS"}` {
		t.Errorf("metrics path-form body = %s", got)
	}

	w = get(t, srv, "/api/threads/11", cookie)
	if got := strings.TrimSpace(w.Body.String()); got != `{"210":"Mean (No Null)","211":"Mean","212":"0","213":"1"}` {
		t.Errorf("threads body = %s", got)
	}
}

func TestHandleMetadata(t *testing.T) {
	srv := newTestServer(t)
	w := get(t, srv, "/api/metadata/11", login(t, srv))
	want := `{"Application":"demo","Hostname":"node002","TAU Version":"2.33"}`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("metadata body = %s, want %s", got, want)
	}
}

func TestHandleProfile(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	decode := func(w *httptest.ResponseRecorder) []profile.ProfileRow {
		t.Helper()
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
		}
		var rows []profile.ProfileRow
		if err := json.NewDecoder(w.Body).Decode(&rows); err != nil {
			t.Fatal(err)
		}
		return rows
	}

	rows := decode(get(t, srv, "/api/profile?metricId=100&threadId=200", cookie))
	if len(rows) != 7 || rows[0].ShortName != "solve" {
		t.Errorf("exclusive rows: len=%d first=%+v", len(rows), rows[0])
	}

	rows = decode(get(t, srv, "/api/profile?metricId=100&threadId=200&type=inclusive&limit=2", cookie))
	if len(rows) != 2 || rows[0].ShortName != "main" {
		t.Errorf("inclusive rows = %+v", rows)
	}

	rows = decode(get(t, srv, "/api/profile/200/100?offset=5", cookie))
	if len(rows) != 2 {
		t.Errorf("offset rows = %d, want 2", len(rows))
	}
}

func TestHandleProfileRowShape(t *testing.T) {
	srv := newTestServer(t)
	w := get(t, srv, "/api/profile/200/100?limit=1", login(t, srv))

	var rows []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&rows); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"timer_callpath", "id", "short_name", "inclusive_value", "inclusive_percent", "exclusive_value", "exclusive_percent"} {
		if _, ok := rows[0][key]; !ok {
			t.Errorf("row missing %q: %v", key, rows[0])
		}
	}
}

func TestHandleProfileBadParams(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	tests := []struct {
		path    string
		wantErr string
	}{
		{"/api/profile?metricId=100", "missing_param"},
		{"/api/profile?metricId=x&threadId=200", "invalid_id"},
		{"/api/profile?metricId=100&threadId=200&type=total", "invalid_type"},
		{"/api/profile?metricId=100&threadId=200&offset=-1", "invalid_offset"},
		{"/api/profile?metricId=100&threadId=200&limit=-5", "invalid_limit"},
		{"/api/profile?metricId=100&threadId=200&limit=5000", "invalid_limit"},
		{"/api/metrics", "missing_param"},
		{"/api/threads/abc", "invalid_id"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, srv, tt.path, cookie)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error != tt.wantErr {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantErr)
			}
		})
	}
}

func TestReloginKeepsCookie(t *testing.T) {
	srv := newTestServer(t)
	cookie := login(t, srv)

	w := postLogin(t, srv, "demo.db", cookie)
	var again *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			again = c
		}
	}
	if again == nil || again.Value != cookie.Value {
		t.Errorf("relogin cookie = %+v, want same id %q", again, cookie.Value)
	}

	// A failed relogin keeps the existing session usable.
	postLogin(t, srv, "unreachable.db", cookie)
	if w := get(t, srv, "/api/applications", cookie); w.Code != http.StatusOK {
		t.Errorf("after failed relogin status = %d, want 200", w.Code)
	}
}

func TestErrorResponseShape(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusBadRequest, "bad", "Bad things")

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["error"] != "bad" || resp["message"] != "Bad things" {
		t.Errorf("response = %v", resp)
	}
}
