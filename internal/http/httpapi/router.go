package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"boardgen/internal/http/handlers"
	"boardgen/internal/infra"
	"boardgen/internal/middleware"
)

type RouterOptions struct {
	Logger          infra.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	// StaticDir, when set, is served under /static for the file-backed store.
	StaticDir string
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/themes", app.ListThemes)

	r.Group(func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Post("/v1/pipeline", app.RunPipeline)
		r.Post("/v1/board/generate", app.GenerateBoard)
		r.Post("/v1/design-agent", app.DesignAgent)
		r.Post("/v1/images", app.GenerateImage)
		r.Post("/v1/uploads", app.Upload)
		r.Route("/v1/image-job", func(r chi.Router) {
			r.Post("/submit", app.SubmitImageJob)
			r.Post("/status", app.ImageJobStatus)
			r.Post("/generate", app.GenerateImageJob)
			r.Get("/{generateUuid}/archive", app.ImageJobArchive)
		})
	})

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
