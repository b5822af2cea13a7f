package dashboard

import (
	"context"
	"embed"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/cucoon/internal/broadcast"
	"github.com/oshokin/cucoon/internal/domain/alert"
	"github.com/oshokin/cucoon/internal/logger"
)

// Service abstracts the dashboard operations the HTTP layer depends on.
type Service interface {
	Snapshot() *alert.Snapshot
	Subscribe() *broadcast.Subscription[alert.Snapshot]
	StopSiren(ctx context.Context) (*alert.Snapshot, error)
	TriggerTestAlert(ctx context.Context) (*alert.Snapshot, error)
	TriggerTestSafe(ctx context.Context) (*alert.Snapshot, error)
	UnlockAudio(ctx context.Context) (*alert.Snapshot, error)
}

// Options tunes the router.
type Options struct {
	// ActionsPerMinute limits POST actions per client IP. Zero or negative disables the limit.
	ActionsPerMinute int
}

//go:embed static/index.html
var static embed.FS

// NewRouter builds the HTTP handler for the dashboard.
func NewRouter(ctx context.Context, service Service, opts Options) http.Handler {
	h := &handler{
		ctx:     logger.WithName(ctx, "http"),
		service: service,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/", h.page)
	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Get("/ws", h.stream)

		r.Group(func(r chi.Router) {
			if opts.ActionsPerMinute > 0 {
				r.Use(httprate.Limit(
					opts.ActionsPerMinute,
					time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
						writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
					}),
				))
			}

			r.Post("/siren/stop", h.action(service.StopSiren))
			r.Post("/alert/test", h.action(service.TriggerTestAlert))
			r.Post("/alert/safe", h.action(service.TriggerTestSafe))
			r.Post("/audio/unlock", h.action(service.UnlockAudio))
		})
	})

	return r
}

// logRequests writes one debug line per request; the WebSocket stream logs on close.
func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.DebugKV(h.ctx, "HTTP request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started),
		)
	})
}
