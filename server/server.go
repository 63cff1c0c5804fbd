package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/StarShopCr/escrowd/auth"
	"github.com/StarShopCr/escrowd/escrow"
	"github.com/StarShopCr/escrowd/middleware"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	DB       *gorm.DB
	Engine   *escrow.Engine
	Verifier *auth.Verifier
	Logger   *slog.Logger
}

// Server exposes the fund-release engine over HTTP.
type Server struct {
	db     *gorm.DB
	engine *escrow.Engine
	log    *slog.Logger

	router http.Handler
}

// New constructs a configured HTTP router with authentication, idempotency
// and observability support.
func New(cfg Config) *Server {
	srv := &Server{
		db:     cfg.DB,
		engine: cfg.Engine,
		log:    cfg.Logger,
	}
	if srv.log == nil {
		srv.log = slog.Default()
	}
	srv.router = srv.buildRouter(cfg.Verifier)
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter(verifier *auth.Verifier) http.Handler {
	obs := NewObservability()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(obs.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		// Authentication runs first so the idempotency cache is only
		// reachable by verified callers and replays are scoped per subject.
		api.Use(verifier.Middleware)
		api.Use(func(next http.Handler) http.Handler { return middleware.WithIdempotency(s.db, next) })

		api.With(auth.RequireRole(auth.RoleSystem)).Post("/escrows", s.CreateEscrow)
		api.With(auth.RequireRole(auth.RoleMember, auth.RoleSystem)).Get("/escrows/by-offer/{offerID}", s.GetEscrowByOffer)

		api.Group(func(member chi.Router) {
			member.Use(auth.RequireRole(auth.RoleMember))
			member.Post("/escrows/{id}/fund", s.FundEscrow)
			member.Post("/escrows/{id}/milestones/{milestoneID}/progress", s.AdvanceMilestoneProgress)
			member.Post("/escrows/{id}/milestones/{milestoneID}/approve", s.ApproveMilestone)
			member.Post("/escrows/{id}/milestones/{milestoneID}/reject", s.RejectMilestone)
			member.Post("/escrows/{id}/milestones/{milestoneID}/release", s.ReleaseMilestoneFunds)
		})
	})

	return r
}

func (s *Server) pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}
