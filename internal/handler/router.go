package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/poet-chat/backend/internal/config"
	"github.com/zhouzirui/poet-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/poet-chat/backend/internal/handler/persona"
	"github.com/zhouzirui/poet-chat/backend/internal/handler/speech"
	middlewarePkg "github.com/zhouzirui/poet-chat/backend/internal/middleware"
	personaModel "github.com/zhouzirui/poet-chat/backend/internal/model/persona"
	"github.com/zhouzirui/poet-chat/backend/internal/web"
	"github.com/zhouzirui/poet-chat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, personas personaModel.Store, chatSvc chat.ChatService, speechSvc speech.SpeechService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	personaHandler := persona.New(personas)
	chatHandler := chat.New(chatSvc)
	speechHandler := speech.New(speechSvc, cfg.Speech.MaxUploadBytes)

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		speechHandler.RegisterRoutes(api)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Server.UIEnabled {
		web.Register(r)
	}

	return r
}
