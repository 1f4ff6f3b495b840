package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-sticker-cloner/internal/usecase"
)

const requestTimeout = 15 * time.Second

// Server is the owner's HTTP administration surface.
type Server struct {
	ledger   usecase.LedgerUseCase
	stats    usecase.StatsUseCase
	settings usecase.SettingsUseCase
	auth     *AuthManager
	ownerID  int64
	log      *zerolog.Logger
}

func NewServer(
	ledger usecase.LedgerUseCase,
	stats usecase.StatsUseCase,
	settings usecase.SettingsUseCase,
	auth *AuthManager,
	ownerID int64,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "admin_api").Logger()
	return &Server{
		ledger:   ledger,
		stats:    stats,
		settings: settings,
		auth:     auth,
		ownerID:  ownerID,
		log:      &l,
	}
}

// Routes builds the router. /health and /metrics are public, everything under
// /api/v1 needs an owner token.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireOwner(s.auth), Timeout(requestTimeout))

		r.Get("/stats", s.botStats)

		r.Get("/codes/stats", s.codeStats)
		r.Get("/codes/{code}", s.getCode)
		r.Post("/codes", s.createCodes)

		r.Get("/templates", s.listTemplates)
		r.Post("/templates", s.createTemplate)
		r.Delete("/templates/{id}", s.deleteTemplate)
		r.Post("/templates/{id}/instantiate", s.instantiateTemplate)

		r.Get("/settings", s.getSettings)
		r.Post("/channels", s.addChannel)
		r.Delete("/channels/{name}", s.removeChannel)
		r.Post("/force-join/{action}", s.toggleForceJoin)
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("admin api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
