package stream

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chathandler "github.com/zhouzirui/compeq-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/assistant"
	"github.com/zhouzirui/compeq-chat/backend/pkg/utils"
)

// Handler 通过 Server-Sent Events 推送模型回复。
type Handler struct {
	assistant *assistant.Service
	maxUpload int64
	logger    *zap.Logger
}

// New creates a new stream handler
func New(assistantSvc *assistant.Service, maxUpload int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		assistant: assistantSvc,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event    string            `json:"event"`
	Content  string            `json:"content,omitempty"`
	Session  string            `json:"session,omitempty"`
	Answer   *assistant.Answer `json:"answer,omitempty"`
	Finished bool              `json:"finished,omitempty"`
	Error    string            `json:"error,omitempty"`
	Status   int               `json:"status,omitempty"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/users/{user}/chat/stream", h.handleStream)
}

// handleStream 依次发送 thinking、若干 delta、message 与 end 事件。
// 提问校验、用户名与上传解码的错误在开始推送之前以普通 JSON 错误返回。
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	form, err := utils.ReadAskForm(w, r, h.maxUpload)
	if err != nil {
		chathandler.RespondServiceError(w, h.logger, err)
		return
	}
	user := chathandler.PathParam(r, "user")

	prepared, err := h.assistant.Prepare(r.Context(), chathandler.QuestionFromForm(user, form))
	if err != nil {
		chathandler.RespondServiceError(w, h.logger, err)
		return
	}

	utils.SetupSSEHeaders(w)
	utils.SendSSEEvent(w, flusher, "thinking", StreamResponse{Event: "thinking"})

	answer, err := h.assistant.Run(r.Context(), prepared, func(delta string) {
		utils.SendSSEEvent(w, flusher, "delta", StreamResponse{Event: "delta", Content: delta})
	})
	if err != nil {
		status := chathandler.StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("stream request failed", zap.String("user", user), zap.Error(err))
		}
		utils.SendSSEEvent(w, flusher, "error", StreamResponse{Event: "error", Error: err.Error(), Status: status})
		utils.SendSSEEvent(w, flusher, "end", StreamResponse{Event: "end", Finished: true})
		return
	}

	utils.SendSSEEvent(w, flusher, "message", StreamResponse{
		Event:   "message",
		Content: answer.Turn.Answer,
		Session: answer.Session,
		Answer:  &answer,
	})
	utils.SendSSEEvent(w, flusher, "end", StreamResponse{Event: "end", Session: answer.Session, Finished: true})
}
