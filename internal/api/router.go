package api

import (
	"net/http"
	"time"

	"contest_judge/internal/api/handler"
	"contest_judge/internal/api/middleware"
	"contest_judge/internal/app/service"
	"contest_judge/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	Auth        *service.AuthService
	Contest     *service.ContestService
	Submission  *service.SubmissionService
	Leaderboard *service.LeaderboardService
}

func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Parses "Authorization: Bearer T" when present; Authenticator enforces it per route.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/auth", handler.NewAuthHandler(svc.Auth).RegisterRoutes)
		v1.Route("/contests", handler.NewContestHandler(svc.Contest, svc.Leaderboard, svc.Submission, svc.Auth).RegisterRoutes)
		v1.Route("/submissions", handler.NewSubmissionHandler(svc.Submission).RegisterRoutes)
	})

	return r
}
