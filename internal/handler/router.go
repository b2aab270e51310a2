package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/compeq-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/handler/export"
	"github.com/zhouzirui/compeq-chat/backend/internal/handler/persona"
	"github.com/zhouzirui/compeq-chat/backend/internal/handler/stream"
	"github.com/zhouzirui/compeq-chat/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/compeq-chat/backend/internal/middleware"
	personaModel "github.com/zhouzirui/compeq-chat/backend/internal/model/persona"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/assistant"
	"github.com/zhouzirui/compeq-chat/backend/pkg/utils"
)

// Options 汇总路由所需的依赖。
type Options struct {
	Assistant      *assistant.Service
	Personas       personaModel.Store
	ActivePersona  string
	AllowedOrigin  string
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		if opts.Personas != nil {
			persona.New(opts.Personas, opts.ActivePersona).RegisterRoutes(api)
		}

		chat.New(opts.Assistant, opts.MaxUploadBytes, logger.Named("chat")).RegisterRoutes(api)
		stream.New(opts.Assistant, opts.MaxUploadBytes, logger.Named("stream")).RegisterRoutes(api)
		export.New(opts.Assistant, logger.Named("export")).RegisterRoutes(api)
		ws.New(opts.Assistant, opts.MaxUploadBytes, logger.Named("ws")).RegisterRoutes(api)
	})

	return r
}
