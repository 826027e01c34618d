package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ferrydl/ferry"
	"github.com/ferrydl/ferry/delivery"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// maxFormBytes bounds the password form body.
const maxFormBytes = 64 << 10

// AdminRole is required by the /api routes.
const AdminRole = "admin"

type Service interface {
	Get(ctx context.Context, idOrName string) (ferry.Download, error)
	List(ctx context.Context, query ferry.ListQuery) (ferry.ListResult, error)
	Events(ctx context.Context, id int64, limit int) ([]ferry.Event, error)
}

type Gate interface {
	Check(ctx context.Context, d *ferry.Download, req ferry.RequestContext) error
}

type Resolver interface {
	Resolve(ctx context.Context, raw string, req ferry.RequestContext) (ferry.Locator, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, w http.ResponseWriter, job delivery.Job) delivery.Outcome
}

type Tracker interface {
	Track(ctx context.Context, downloadID int64, userID, ip string, isRange bool) bool
}

// Pipeline holds the collaborators that serve a single download.
type Pipeline struct {
	Gate       Gate
	Resolver   Resolver
	Dispatcher Dispatcher
	Tracker    Tracker
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"`
}

type HandlerConfig struct {
	CORS          CORSConfig
	Authenticator Authenticator
	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
	Recorder    RequestRecorder
	Logger      *slog.Logger
}

// Handler serves downloads and the admin API.
type Handler struct {
	config   HandlerConfig
	service  Service
	pipeline Pipeline
	logger   *slog.Logger
}

// NewHandler creates a new Handler with the given configuration, service
// and delivery pipeline.
func NewHandler(config *HandlerConfig, service Service, pipeline Pipeline) *Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		config:   *config,
		service:  service,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Router returns an http.Handler with every route configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(AccessLog(h.logger, h.config.Recorder))
	r.Use(middleware.Recoverer)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		HandleError(w, r, ferry.ErrNotFound)
	})

	if h.config.Metrics != nil {
		path := h.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, h.config.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.config.Authenticator))

		r.Get("/download/{idOrName}", h.handleDownload)
		r.Post("/download/{idOrName}", h.handleDownload)

		r.Route("/api/downloads", func(r chi.Router) {
			r.Use(RequireRole(AdminRole))
			r.Get("/", h.handleList)
			r.Get("/{id}/events", h.handleEvents)
		})
	})

	return r
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	idOrName, err := url.PathUnescape(chi.URLParam(r, "idOrName"))
	if err != nil || idOrName == "" {
		HandleError(w, r, ferry.ErrInvalidInput)
		return
	}

	req := requestContext(w, r)

	d, err := h.service.Get(ctx, idOrName)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	if err := h.pipeline.Gate.Check(ctx, &d, req); err != nil {
		h.handleGateError(w, r, d, err)
		return
	}

	loc, err := h.pipeline.Resolver.Resolve(ctx, d.FileURL, req)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	out := h.pipeline.Dispatcher.Dispatch(ctx, w, delivery.Job{Download: d, Locator: loc, Request: req})

	switch out.Kind {
	case delivery.Ok:
		if !out.Partial && h.pipeline.Tracker != nil {
			h.pipeline.Tracker.Track(ctx, d.ID, req.UserID(), req.IP, false)
		}
	case delivery.Fatal:
		if out.Committed {
			h.logger.WarnContext(ctx, "download aborted after response started",
				"download_id", d.ID, "strategy", out.Strategy, "bytes", out.Bytes, "err", out.Err)
			return
		}
		delivery.ResetHeaders(w.Header())
		HandleError(w, r, out.Err)
	default:
		delivery.ResetHeaders(w.Header())
		HandleError(w, r, ferry.ErrFileNotFound)
	}
}

func (h *Handler) handleGateError(w http.ResponseWriter, r *http.Request, d ferry.Download, err error) {
	if wantsHTML(r) {
		switch {
		case errors.Is(err, ferry.ErrPasswordRequired):
			writePasswordForm(w, http.StatusOK, d.Name, r.URL.RequestURI(), "")
			return
		case errors.Is(err, ferry.ErrIncorrectPassword):
			h.logger.InfoContext(r.Context(), "incorrect download password", "download_id", d.ID)
			writePasswordForm(w, http.StatusUnauthorized, d.Name, r.URL.RequestURI(), "The password you entered is incorrect.")
			return
		}
	}

	HandleError(w, r, err)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := ferry.ListQuery{
		NamePrefix: q.Get("prefix"),
		Category:   q.Get("category"),
		Limit:      parseLimit(q.Get("limit")),
		Cursor:     q.Get("cursor"),
	}

	result, err := h.service.List(r.Context(), query)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		HandleError(w, r, ferry.ErrInvalidInput)
		return
	}

	events, err := h.service.Events(r.Context(), id, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		HandleError(w, r, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"items": events})
}

func parseLimit(s string) int {
	limit, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return ferry.PageSize(limit)
}

// requestContext captures the parts of the request the download pipeline
// reads. The password is only taken from a POSTed form.
func requestContext(w http.ResponseWriter, r *http.Request) ferry.RequestContext {
	req := ferry.RequestContext{
		Method:      r.Method,
		Secure:      r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https"),
		Host:        r.Host,
		IP:          clientIP(r.RemoteAddr),
		User:        ferry.UserFromContext(r.Context()),
		RangeHeader: r.Header.Get("Range"),
	}

	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err == nil {
			if values, ok := r.PostForm[PasswordField]; ok && len(values) > 0 {
				req.Password = values[0]
				req.HasPassword = true
			}
		}
	}

	return req
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
