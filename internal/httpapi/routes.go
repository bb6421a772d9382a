package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/zombie-proximity/internal/authority"
	"github.com/DoyleJ11/zombie-proximity/internal/ether"
)

func SetupRoutes(a *authority.Authority, e *ether.Ether, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Device protocol
	r.Post("/game", ReportGame(a, log))
	r.Get("/ether", ether.Handler(e, log))

	// Admin
	r.Post("/match/start", StartMatch(a))
	r.Get("/match", GetMatch(a))
	r.Get("/healthz", Healthz)
	return r
}
