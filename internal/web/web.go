// Package web serves the month layout over HTTP: a JSON API, an HTML month
// page used for the PNG preview, and the preview itself.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"monthcal/internal/config"
	"monthcal/internal/daykey"
	"monthcal/internal/grid"
	"monthcal/internal/layout"
	appLog "monthcal/internal/log"
	"monthcal/internal/model"
	"monthcal/internal/source"
)

//go:embed templates/*.html
var templateFS embed.FS

var monthTemplate = template.Must(template.ParseFS(templateFS, "templates/month.html"))

var errBadMonth = errors.New("month must be YYYY-MM")

// Server provides the HTTP API and the HTML month page.
type Server struct {
	cfg   *config.Config
	store *source.Store
	mux   *http.ServeMux
	memo  layout.Memo
	now   func() time.Time
}

// NewServer constructs a new Server over store.
func NewServer(cfg *config.Config, store *source.Store) *Server {
	s := &Server{
		cfg:   cfg,
		store: store,
		mux:   http.NewServeMux(),
		now:   time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="monthcal", charset="UTF-8"`)
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
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("GET /api/layout", s.handleLayout)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /month", s.handleMonth)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured PNG preview from disk.
// http.ServeFile answers 404 when no capture has run yet.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.PreviewPath)
}

// page resolves the ?month= parameter (default: the current month in the
// configured timezone) and makes sure the store covers its grid.
func (s *Server) page(ctx context.Context, r *http.Request) (grid.Grid, error) {
	loc := s.cfg.Location()
	year, month, _ := s.now().In(loc).Date()
	if v := r.URL.Query().Get("month"); v != "" {
		var err error
		year, month, err = daykey.ParseMonth(v)
		if err != nil {
			return grid.Grid{}, errBadMonth
		}
	}
	g := grid.Month(year, month, s.cfg.Weekday(), s.cfg.ShowAdjacentMonths)
	if !s.store.Covers(g.Window()) {
		if err := s.store.Refresh(ctx, g.Window()); err != nil {
			return g, err
		}
	}
	return g, nil
}

// writePageError maps page errors to status codes.
func writePageError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadMonth) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	appLog.Error("web: refresh failed", err)
	writeError(w, http.StatusBadGateway, "failed to load calendar sources")
}

func (s *Server) layout(g grid.Grid) *layout.Layout {
	return s.memo.Allocate(s.store.Events(), g, s.cfg.LayoutOptions())
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Month           string     `json:"month"`
	First           daykey.Key `json:"first"`
	Last            daykey.Key `json:"last"`
	DisplayTimeZone string     `json:"display_timezone"`
	WeekStart       string     `json:"week_start"`
	RefreshedAt     time.Time  `json:"refreshed_at"`
	TruncatedUIDs   []string   `json:"truncated_uids,omitempty"`
	Events          []eventDTO `json:"events"`
}

// eventDTO is a JSON-friendly view of an event.
type eventDTO struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	UID         string    `json:"uid"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

func toDTO(e model.Event) eventDTO {
	return eventDTO{
		ID:          e.ID,
		SourceID:    e.SourceID,
		UID:         e.UID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		AllDay:      e.AllDay,
		Start:       e.Start,
		End:         e.End,
	}
}

// handleEvents returns the events touching the cells of a month page.
//
// GET /api/events?month=2024-03
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	g, err := s.page(r.Context(), r)
	if err != nil {
		writePageError(w, err)
		return
	}
	loc := s.cfg.Location()
	snap := s.store.Snapshot()
	cells := daykey.Range{First: g.First(), Last: g.Last()}

	events := source.Overlapping(snap.Events, cells, loc)
	dtos := make([]eventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, toDTO(e))
	}

	year, month := g.Target()
	writeJSON(w, http.StatusOK, eventsResponse{
		Month:           monthString(year, month),
		First:           cells.First,
		Last:            cells.Last,
		DisplayTimeZone: loc.String(),
		WeekStart:       g.WeekStart().String(),
		RefreshedAt:     snap.RefreshedAt,
		TruncatedUIDs:   snap.Truncated,
		Events:          dtos,
	})
}

// layoutResponse is the JSON response shape for /api/layout.
type layoutResponse struct {
	Month      string            `json:"month"`
	WeekStart  string            `json:"week_start"`
	MaxVisible int               `json:"max_visible"`
	Weeks      [][]daykey.Key    `json:"weeks"`
	Days       []dayDTO          `json:"days"`
	Events     map[string]string `json:"events"`
	Skipped    int               `json:"skipped,omitempty"`
	Conflicts  int               `json:"conflicts,omitempty"`
}

// dayDTO is one placed day. Slots hold event IDs; null marks an empty row.
type dayDTO struct {
	Key        daykey.Key `json:"key"`
	Slots      []*string  `json:"slots"`
	Count      int        `json:"count"`
	Renderable int        `json:"renderable"`
	More       int        `json:"more"`
	MoreLabel  string     `json:"more_label,omitempty"`
}

// handleLayout returns the slot allocation of a month page.
//
// GET /api/layout?month=2024-03
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	g, err := s.page(r.Context(), r)
	if err != nil {
		writePageError(w, err)
		return
	}
	l := s.layout(g)

	year, month := g.Target()
	resp := layoutResponse{
		Month:      monthString(year, month),
		WeekStart:  g.WeekStart().String(),
		MaxVisible: l.Options().MaxVisible,
		Days:       make([]dayDTO, 0, l.Len()),
		Events:     make(map[string]string),
		Skipped:    l.Skipped(),
		Conflicts:  l.Conflicts(),
	}
	for _, week := range g.Weeks() {
		resp.Weeks = append(resp.Weeks, week[:])
	}
	for _, k := range l.Keys() {
		if !g.Contains(k) {
			continue
		}
		d, _ := l.Day(k)
		dto := dayDTO{
			Key:        k,
			Slots:      make([]*string, len(d.Slots)),
			Count:      d.Count,
			Renderable: d.Renderable,
			More:       d.More,
		}
		for i, ev := range d.Slots {
			if ev == nil {
				continue
			}
			id := ev.ID
			dto.Slots[i] = &id
			resp.Events[id] = ev.Title
		}
		if d.More > 0 {
			dto.MoreLabel = layout.FormatMore(s.cfg.MoreLabel, d.More, d.Count)
		}
		resp.Days = append(resp.Days, dto)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh reloads the sources for a month page regardless of the
// current snapshot.
//
// POST /api/refresh?month=2024-03
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	loc := s.cfg.Location()
	year, month, _ := s.now().In(loc).Date()
	if v := r.URL.Query().Get("month"); v != "" {
		var err error
		if year, month, err = daykey.ParseMonth(v); err != nil {
			writeError(w, http.StatusBadRequest, errBadMonth.Error())
			return
		}
	}
	g := grid.Month(year, month, s.cfg.Weekday(), s.cfg.ShowAdjacentMonths)
	if err := s.store.Refresh(r.Context(), g.Window()); err != nil {
		writePageError(w, err)
		return
	}
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"events":       len(snap.Events),
		"failures":     snap.Failures,
		"refreshed_at": snap.RefreshedAt,
	})
}

// handleMonth renders the HTML month page used for the PNG preview.
//
// GET /month?month=2024-03
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	g, err := s.page(r.Context(), r)
	if err != nil {
		writePageError(w, err)
		return
	}
	today := daykey.Of(s.now(), s.cfg.Location())
	data := buildMonthView(s.layout(g), s.cfg.MoreLabel, s.cfg.ShowWeekNumber, today)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := monthTemplate.Execute(w, data); err != nil {
		appLog.Error("web: render month page failed", err)
	}
}

func monthString(year int, month time.Month) string {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
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
