package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	gameHandler "github.com/hakoke/impostor/internal/handler/game"
	"github.com/hakoke/impostor/internal/handler/ws"
	middlewarePkg "github.com/hakoke/impostor/internal/middleware"
	gameService "github.com/hakoke/impostor/internal/service/game"
	"github.com/hakoke/impostor/internal/storage"
	"github.com/hakoke/impostor/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(orchestrator *gameService.Orchestrator, store storage.Store, hub *ws.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	restHandler := gameHandler.New(orchestrator, store)
	socketHandler := ws.NewHandler(hub, orchestrator)

	r.Route("/api", func(api chi.Router) {
		restHandler.RegisterRoutes(api)
		socketHandler.RegisterRoutes(api)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
