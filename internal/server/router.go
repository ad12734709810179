package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/norddok/norddok/internal/api"
	"github.com/norddok/norddok/internal/api/handlers"
	"github.com/norddok/norddok/internal/api/middleware"
)

type RouterConfig struct {
	AuthToken           string
	ChunkHandler        *handlers.ChunkHandler
	SearchHandler       *handlers.SearchHandler
	OutcomeHandler      *handlers.OutcomeHandler
	CorpusHandler       *handlers.CorpusHandler
	ConfirmationHandler *handlers.ConfirmationHandler
	InsightHandler      *handlers.InsightHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(cfg.AuthToken))

		r.Route("/chunks", func(r chi.Router) {
			r.Post("/", cfg.ChunkHandler.Add)
			r.Post("/batch", cfg.ChunkHandler.AddBatch)
			r.Get("/", cfg.ChunkHandler.List)
			r.Delete("/", cfg.ChunkHandler.Clear)
			r.Delete("/source", cfg.ChunkHandler.DeleteBySource)
			r.Get("/{id}", cfg.ChunkHandler.Get)
		})

		r.Post("/corpus", cfg.CorpusHandler.Ingest)

		r.Post("/search", cfg.SearchHandler.Search)
		r.Post("/search/context", cfg.SearchHandler.Context)
		r.Get("/golden-records", cfg.SearchHandler.GoldenRecords)
		r.Get("/negative-constraints", cfg.SearchHandler.NegativeConstraints)

		r.Route("/outcomes", func(r chi.Router) {
			r.Post("/approval", cfg.OutcomeHandler.Approval)
			r.Post("/rejection", cfg.OutcomeHandler.Rejection)
		})

		r.Post("/confirmations", cfg.ConfirmationHandler.Record)

		r.Post("/insights", cfg.InsightHandler.Extract)

		r.Get("/stats", cfg.ChunkHandler.Stats)
	})

	return r
}
