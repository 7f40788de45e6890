package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nextrace/internal/calendar"
	"nextrace/internal/config"
	appLog "nextrace/internal/log"
	"nextrace/internal/model"
	"nextrace/internal/race"
	"nextrace/internal/refresh"
)

const (
	shutdownTimeout = 5 * time.Second

	// Manual refreshes per client IP per window.
	refreshLimit  = 10
	refreshWindow = time.Minute
)

// Provider is the read and refresh surface the HTTP API needs.
// *refresh.Refresher implements it.
type Provider interface {
	Snapshot() refresh.Snapshot
	Registry() model.Registry
	Refresh(ctx context.Context) error
}

// Server exposes the next events over HTTP.
type Server struct {
	cfg     *config.Config
	data    Provider
	display *time.Location
	now     func() time.Time
	router  chi.Router
}

// NewServer constructs a new Server. display is the zone reported to
// clients; resolved instants are already expressed in it.
func NewServer(cfg *config.Config, data Provider, display *time.Location) *Server {
	if display == nil {
		display = time.Local
	}
	s := &Server{
		cfg:     cfg,
		data:    data,
		display: display,
		now:     time.Now,
		router:  chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Listen until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	if s.basicAuthEnabled() {
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/next", s.handleNext)
		r.Get("/next/{code}", s.handleNextSeries)
		r.Get("/next.ics", s.handleCalendar)
		r.With(refreshRateLimit()).Post("/refresh", s.handleRefresh)
	})
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
			w.Header().Set("WWW-Authenticate", `Basic realm="nextrace", charset="UTF-8"`)
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

// refreshRateLimit bounds how often a client can force a feed fetch.
func refreshRateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(
		refreshLimit,
		refreshWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(refreshWindow.Seconds())))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}

func requestLogger(next http.Handler) http.Handler {
	logger := appLog.WithComponent("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// nextResponse is the JSON response shape for /api/next.
type nextResponse struct {
	Series          []cardDTO  `json:"series"`
	FetchedAt       *time.Time `json:"fetched_at,omitempty"`
	FromCache       bool       `json:"from_cache"`
	Error           string     `json:"error,omitempty"`
	DisplayTimeZone string     `json:"display_timezone"`
}

// cardDTO is a JSON-friendly view of race.Card.
type cardDTO struct {
	Code  string    `json:"code"`
	Name  string    `json:"name"`
	Logo  string    `json:"logo,omitempty"`
	Event *eventDTO `json:"event"`
}

type eventDTO struct {
	RaceName  string        `json:"race_name"`
	Venue     string        `json:"venue"`
	Start     time.Time     `json:"start"`
	TV        []race.Outlet `json:"tv"`
	Radio     []race.Outlet `json:"radio"`
	Satellite []race.Outlet `json:"satellite"`
}

func toCardDTO(c race.Card) cardDTO {
	dto := cardDTO{
		Code: c.Series.Code,
		Name: c.DisplayName,
		Logo: c.Series.Logo,
	}
	if c.Event != nil {
		dto.Event = &eventDTO{
			RaceName:  c.RaceName,
			Venue:     c.Venue,
			Start:     c.Event.Start,
			TV:        c.TV,
			Radio:     c.Radio,
			Satellite: c.Satellite,
		}
	}
	return dto
}

// board selects from snap against the current clock. Every response is
// built from one snapshot so its cards and metadata agree.
func (s *Server) board(snap refresh.Snapshot, reg model.Registry) []race.Card {
	return race.BuildBoard(race.SelectResolved(snap.Events, s.now(), reg), reg)
}

// handleNext returns one card per tracked series. A series without an
// upcoming event has a null event.
func (s *Server) handleNext(w http.ResponseWriter, _ *http.Request) {
	snap := s.data.Snapshot()
	cards := s.board(snap, s.data.Registry())

	resp := nextResponse{
		Series:          make([]cardDTO, 0, len(cards)),
		FromCache:       snap.FromCache,
		DisplayTimeZone: s.display.String(),
	}
	for _, c := range cards {
		resp.Series = append(resp.Series, toCardDTO(c))
	}
	if !snap.FetchedAt.IsZero() {
		t := snap.FetchedAt.In(s.display)
		resp.FetchedAt = &t
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleNextSeries returns the card of a single series by code.
func (s *Server) handleNextSeries(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	d, ok := s.data.Registry().Lookup(code)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown series "+code)
		return
	}
	cards := s.board(s.data.Snapshot(), model.Registry{d})
	writeJSON(w, http.StatusOK, toCardDTO(cards[0]))
}

func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	body, err := calendar.Export(s.board(s.data.Snapshot(), s.data.Registry()), s.now())
	if err != nil {
		appLog.Error("calendar export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="nextrace.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.data.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshed"})
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
