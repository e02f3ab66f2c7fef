package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/autoperf/taudash/internal/profile"
	"github.com/autoperf/taudash/internal/session"
	"github.com/autoperf/taudash/internal/taudb"
)

// Login and session status values.
const (
	StatusSucceed = "Succeed"
	StatusFailed  = "Failed"
	StatusGood    = "Good"
	StatusFail    = "Fail"
	LogoutSuccess = "Success"
)

// LoginResponse is the body of POST /api/login.
type LoginResponse struct {
	Status string `json:"status"`
}

// LoggedInResponse is the body of GET /api/logedIn. Connection fields are
// set only when Status is Good.
type LoggedInResponse struct {
	Status string `json:"status"`
	DBHost string `json:"dbhost,omitempty"`
	DBName string `json:"dbname,omitempty"`
	DBUser string `json:"dbuser,omitempty"`
	Driver string `json:"driver,omitempty"`
}

// SchedulerStatusResponse represents scheduler status.
type SchedulerStatusResponse struct {
	Running bool        `json:"running"`
	Jobs    []JobStatus `json:"jobs"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// handleLogin opens the posted database and binds it to the caller's
// session. A database that cannot be reached yields status Failed with 200.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "sessions_unavailable", "Login sessions not available")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_form", "Malformed login form")
		return
	}

	params := taudb.ConnParams{
		Driver:   r.PostForm.Get("driver"),
		Host:     r.PostForm.Get("dbhost"),
		Name:     r.PostForm.Get("dbname"),
		User:     r.PostForm.Get("dbuser"),
		Password: r.PostForm.Get("dbpass"),
	}
	if params.Driver == "" {
		params.Driver = s.cfg.Datasource.Driver
	}

	id, err := s.sessions.Login(r.Context(), sessionID(r), params)
	if err != nil {
		if !errors.Is(err, taudb.ErrConnect) {
			s.logger.Error("login failed", "error", err)
		}
		writeJSON(w, http.StatusOK, LoginResponse{Status: StatusFailed})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, LoginResponse{Status: StatusSucceed})
}

// handleLoggedIn reports whether the caller has a live session.
func (s *Server) handleLoggedIn(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeJSON(w, http.StatusOK, LoggedInResponse{Status: StatusFail})
		return
	}
	st, release, ok := s.sessions.Acquire(sessionID(r))
	if !ok {
		writeJSON(w, http.StatusOK, LoggedInResponse{Status: StatusFail})
		return
	}
	defer release()
	p := st.Params()
	writeJSON(w, http.StatusOK, LoggedInResponse{
		Status: StatusGood,
		DBHost: p.Host,
		DBName: p.Name,
		DBUser: p.User,
		Driver: p.Driver,
	})
}

// handleLogout ends the caller's session and expires the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.sessions != nil {
		if id := sessionID(r); id != "" {
			s.sessions.Logout(id)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, LogoutSuccess)
}

// handleApplications returns the application names as a JSON array.
func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := storeFrom(r.Context()).Applications(r.Context())
	if err != nil {
		s.internalError(w, "list applications", err)
		return
	}
	names := make([]string, len(apps))
	for i, a := range apps {
		names[i] = a.Name
	}
	writeJSON(w, http.StatusOK, names)
}

// handleTrials returns trials of an application, or all trials when no
// application is given.
func (s *Server) handleTrials(w http.ResponseWriter, r *http.Request) {
	st := storeFrom(r.Context())
	app := chi.URLParam(r, "appName")
	// chi routes on RawPath when the name carries an escaped '/'.
	if unescaped, err := url.PathUnescape(app); err == nil {
		app = unescaped
	}
	hasApp := app != ""
	if !hasApp {
		q := r.URL.Query()
		hasApp = q.Has("appName")
		app = q.Get("appName")
	}

	var (
		trials []profile.Trial
		err    error
	)
	if hasApp {
		trials, err = st.Trials(r.Context(), app)
	} else {
		trials, err = st.AllTrials(r.Context())
	}
	if err != nil {
		s.internalError(w, "list trials", err)
		return
	}
	writeJSON(w, http.StatusOK, profile.OrderedTrials(trials))
}

// handleMetrics returns the metrics of a trial.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	trialID, ok := requireID(w, r, "trialId")
	if !ok {
		return
	}
	metrics, err := storeFrom(r.Context()).Metrics(r.Context(), trialID)
	if err != nil {
		s.internalError(w, "list metrics", err)
		return
	}
	writeJSON(w, http.StatusOK, profile.OrderedMetrics(metrics))
}

// handleThreads returns the threads of a trial.
func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	trialID, ok := requireID(w, r, "trialId")
	if !ok {
		return
	}
	threads, err := storeFrom(r.Context()).Threads(r.Context(), trialID)
	if err != nil {
		s.internalError(w, "list threads", err)
		return
	}
	writeJSON(w, http.StatusOK, profile.OrderedThreads(threads))
}

// handleMetadata returns the metadata of a trial.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	trialID, ok := requireID(w, r, "trialId")
	if !ok {
		return
	}
	entries, err := storeFrom(r.Context()).Metadata(r.Context(), trialID)
	if err != nil {
		s.internalError(w, "list metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, profile.OrderedMetadata(entries))
}

// handleProfile returns the timer rows of a (thread, metric) pair.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	threadID, ok := requireID(w, r, "threadId")
	if !ok {
		return
	}
	metricID, ok := requireID(w, r, "metricId")
	if !ok {
		return
	}

	q := r.URL.Query()
	vt, err := profile.ParseValueType(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_type", err.Error())
		return
	}
	offset, ok := optionalInt(w, q.Get("offset"), "offset")
	if !ok {
		return
	}
	limit, ok := optionalInt(w, q.Get("limit"), "limit")
	if !ok {
		return
	}
	if limit > taudb.MaxProfileLimit {
		writeError(w, http.StatusBadRequest, "invalid_limit",
			fmt.Sprintf("limit must be at most %d", taudb.MaxProfileLimit))
		return
	}

	rows, err := storeFrom(r.Context()).Profile(r.Context(), taudb.ProfileQuery{
		ThreadID: threadID,
		MetricID: metricID,
		Type:     vt,
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		s.internalError(w, "query profile", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleSchedulerStatus returns the scheduler status.
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler_unavailable", "Scheduler not available")
		return
	}
	jobs := s.scheduler.Status()
	if jobs == nil {
		jobs = []JobStatus{}
	}
	writeJSON(w, http.StatusOK, SchedulerStatusResponse{
		Running: s.scheduler.IsRunning(),
		Jobs:    jobs,
	})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("query failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "Failed to "+op)
}

// requireID reads an integer id from the URL path or, failing that, the
// query string.
func requireID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		raw = r.URL.Query().Get(name)
	}
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_param", "Parameter '"+name+"' is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "Parameter '"+name+"' must be a number")
		return 0, false
	}
	return id, true
}

// optionalInt parses a non-negative integer parameter; empty means 0.
func optionalInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+name, "Parameter '"+name+"' must be a non-negative integer")
		return 0, false
	}
	return n, true
}
