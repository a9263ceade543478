package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"taskrrule/internal/config"
	"taskrrule/internal/ics"
	appLog "taskrrule/internal/log"
	"taskrrule/internal/model"
	"taskrrule/internal/recur"
)

const (
	agendaCacheTTL = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// TaskSource supplies the imported tasks the agenda and export endpoints
// work on. *ics.Library implements it.
type TaskSource interface {
	Tasks() []model.Task
}

// Server exposes the schedule engine over JSON.
type Server struct {
	cfg   *config.Config
	eng   *recur.Engine
	tasks TaskSource
	mux   *http.ServeMux
	now   func() time.Time

	agendaMu    sync.RWMutex
	agendaCache map[string]agendaEntry
}

type agendaEntry struct {
	resp      agendaResponse
	updatedAt time.Time
}

// NewServer wires the routes. tasks may be nil when no feeds are configured.
func NewServer(cfg *config.Config, eng *recur.Engine, tasks TaskSource) *Server {
	s := &Server{
		cfg:         cfg,
		eng:         eng,
		tasks:       tasks,
		mux:         http.NewServeMux(),
		now:         time.Now,
		agendaCache: make(map[string]agendaEntry),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed handler, behind Basic Auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves until ctx is cancelled, then shuts down with a
// five second grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials mean auth is off.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards every route except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="taskrrule", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/parse", s.handleParse)
	s.mux.HandleFunc("POST /api/describe", s.handleDescribe)
	s.mux.HandleFunc("POST /api/quick", s.handleQuick)
	s.mux.HandleFunc("POST /api/custom", s.handleCustom)
	s.mux.HandleFunc("POST /api/time", s.handleTime)
	s.mux.HandleFunc("POST /api/date", s.handleDate)
	s.mux.HandleFunc("POST /api/single", s.handleSingle)
	s.mux.HandleFunc("GET /api/agenda", s.handleAgenda)
	s.mux.HandleFunc("POST /api/export", s.handleExport)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// describeResponse summarizes an encoding for display.
type describeResponse struct {
	Encoding  string     `json:"encoding"`
	Display   string     `json:"display"`
	Label     string     `json:"label,omitempty"`
	Recurring bool       `json:"recurring"`
	First     *time.Time `json:"first,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	Time      *time.Time `json:"time,omitempty"`
	NextDue   *time.Time `json:"next_due,omitempty"`
}

func optional(t time.Time, ok bool) *time.Time {
	if !ok {
		return nil
	}
	return &t
}

// describe builds the describe payload of an encoding in loc.
func (s *Server) describe(enc string, loc *time.Location) describeResponse {
	resp := describeResponse{
		Encoding:  enc,
		Display:   recur.DisplayText(enc),
		Recurring: recur.IsRecurring(enc),
		First:     optional(s.eng.FirstOccurrenceDate(enc, loc)),
		End:       optional(recur.EndDate(enc, loc)),
		NextDue:   optional(s.eng.NextDueDate(enc, loc)),
	}
	if label, ok := s.eng.ScheduleLabel(enc, loc); ok {
		resp.Label = label
	}
	if recur.HasExplicitTime(enc) {
		resp.Time = optional(s.eng.ParseTimeOfDay(enc, loc))
	}
	return resp
}

type parseRequest struct {
	Text     string `json:"text"`
	Timezone string `json:"timezone"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	loc, ok := s.decode(w, r, &req, func() string { return req.Timezone })
	if !ok {
		return
	}
	enc, ok := s.eng.ParseNaturalLanguage(req.Text, loc)
	if !ok {
		appLog.Debug("api parse: no schedule", "text", req.Text)
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("could not understand %q", req.Text))
		return
	}
	writeJSON(w, http.StatusOK, s.describe(enc, loc))
}

type encodingRequest struct {
	Encoding string `json:"encoding"`
	Timezone string `json:"timezone"`
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var req encodingRequest
	loc, ok := s.decode(w, r, &req, func() string { return req.Timezone })
	if !ok {
		return
	}
	if err := recur.Validate(req.Encoding); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.describe(req.Encoding, loc))
}

type quickRequest struct {
	Date      time.Time `json:"date"`
	Frequency string    `json:"frequency"`
	Timezone  string    `json:"timezone"`
	BasedOn   string    `json:"based_on"`
	Existing  string    `json:"existing"`
}

func basedOn(s string) recur.BasedOn {
	if recur.BasedOn(s) == recur.Completed {
		return recur.Completed
	}
	return recur.Scheduled
}

func (s *Server) handleQuick(w http.ResponseWriter, r *http.Request) {
	var req quickRequest
	loc, ok := s.decode(w, r, &req, func() string { return req.Timezone })
	if !ok {
		return
	}
	freq, err := recur.ParseQuickFrequency(req.Frequency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var enc string
	if req.Existing != "" {
		enc, err = s.eng.GenerateRecurrenceWithPreservedTime(req.Existing, freq, req.Date, loc, basedOn(req.BasedOn))
	} else {
		enc, err = s.eng.GenerateQuickRecurrence(req.Date, freq, loc, basedOn(req.BasedOn))
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.describe(enc, loc))
}

type customRequest struct {
	Date     time.Time    `json:"date"`
	Config   recur.Config `json:"config"`
	Timezone string       `json:"timezone"`
	Existing string       `json:"existing"`
}

func (s *Server) handleCustom(w http.ResponseWriter, r *http.Request) {
	var req customRequest
	loc, ok := s.decode(w, r, &req, func() string { return req.Timezone })
	if !ok {
		return
	}
	enc, err := s.eng.GenerateCustomRecurrence(req.Date, req.Config, loc, req.Existing)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.describe(enc, loc))
}

type timeRequest struct {
	Encoding string     `json:"encoding"`
	Time     *time.Time `json:"time"`
	Timezone string     `json:"timezone"`
}

// handleTime sets or clears the time of day. A null time clears it.
func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	loc, ok := s.decode(w, r, &req, func() string { return req.Timezone })
	if !ok {
		return
	}
	var enc string
	if req.Encoding == "" && req.Time != nil {
		enc = s.eng.GenerateTimeOnlyRecurrence(*req.Time, loc)
	} else {
		enc = s.eng.ReplaceTimeOfDay(req.Encoding, req.Time, loc)
	}
	writeJSON(w, http.StatusOK, s.describe(enc, loc))
}

type dateRequest struct {
	Encoding string    `json:"encoding"`
	Date     time.Time `json:"date"`
	Timezone string    `json:"timezone"`
}

func (s *Server) handleDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	loc, ok := s.decode(w, r, &req, func() string { return req.Timezone })
	if !ok {
		return
	}
	if req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	writeJSON(w, http.StatusOK, s.describe(s.eng.UpdateWithDate(req.Encoding, req.Date, loc), loc))
}

func (s *Server) handleSingle(w http.ResponseWriter, r *http.Request) {
	var req encodingRequest
	loc, ok := s.decode(w, r, &req, func() string { return req.Timezone })
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.describe(recur.ConvertToSingleOccurrence(req.Encoding), loc))
}

// agendaResponse is the JSON shape of /api/agenda.
type agendaResponse struct {
	Occurrences []model.Occurrence `json:"occurrences"`
	Truncated   []string           `json:"truncated_uids,omitempty"`
	RangeStart  time.Time          `json:"range_start"`
	RangeEnd    time.Time          `json:"range_end"`
	Timezone    string             `json:"timezone"`
}

// handleAgenda expands the imported tasks over the next days.
//
// GET /api/agenda?days=14&tz=Asia/Manila
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 || days > 366 {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 366")
		return
	}
	loc, err := s.location(q.Get("tz"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := loc.String() + "|" + strconv.Itoa(days)
	now := s.now()
	s.agendaMu.RLock()
	cached, hit := s.agendaCache[key]
	s.agendaMu.RUnlock()
	if hit && now.Sub(cached.updatedAt) < agendaCacheTTL {
		writeJSON(w, http.StatusOK, cached.resp)
		return
	}

	start := s.eng.Now(loc)
	end := start.AddDate(0, 0, days)
	var tasks []model.Task
	if s.tasks != nil {
		tasks = s.tasks.Tasks()
	}
	res, err := ics.ExpandAgenda(s.eng, tasks, ics.AgendaConfig{Location: loc, From: start, To: end})
	if err != nil {
		appLog.Error("api agenda: expand failed", err)
		writeError(w, http.StatusInternalServerError, "failed to expand agenda")
		return
	}
	resp := agendaResponse{
		Occurrences: res.Occurrences,
		Truncated:   res.Truncated,
		RangeStart:  start,
		RangeEnd:    end,
		Timezone:    loc.String(),
	}
	if resp.Occurrences == nil {
		resp.Occurrences = []model.Occurrence{}
	}

	s.agendaMu.Lock()
	s.agendaCache[key] = agendaEntry{resp: resp, updatedAt: now}
	s.agendaMu.Unlock()

	appLog.Debug("api agenda", "days", days, "timezone", loc.String(), "occurrences", len(resp.Occurrences))
	writeJSON(w, http.StatusOK, resp)
}

type exportRequest struct {
	Tasks    []model.Task `json:"tasks"`
	Timezone string       `json:"timezone"`
}

// handleExport writes the posted tasks, or the imported ones when none are
// posted, as an iCalendar file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	loc, ok := s.decode(w, r, &req, func() string { return req.Timezone })
	if !ok {
		return
	}
	tasks := req.Tasks
	if len(tasks) == 0 && s.tasks != nil {
		tasks = s.tasks.Tasks()
	}
	for _, t := range tasks {
		if err := recur.Validate(t.Encoding); err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("task %q: %v", t.Summary, err))
			return
		}
	}

	var buf bytes.Buffer
	if err := ics.WriteICS(&buf, s.eng, tasks, loc); err != nil {
		appLog.Error("api export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to write calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// decode reads a JSON body into v and resolves the timezone it names. It
// writes the error response itself and reports whether to go on.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, tz func() string) (*time.Location, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON: "+err.Error())
		return nil, false
	}
	loc, err := s.location(tz())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return loc, true
}

// location resolves a request timezone, defaulting to the configured one.
func (s *Server) location(name string) (*time.Location, error) {
	if name == "" {
		return s.cfg.Location(), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", name)
	}
	return loc, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
