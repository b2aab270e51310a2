package export

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	chathandler "github.com/zhouzirui/compeq-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/assistant"
	exportservice "github.com/zhouzirui/compeq-chat/backend/internal/service/export"
)

// Handler 把会话记录渲染成可下载的文件。
type Handler struct {
	assistant *assistant.Service
	logger    *zap.Logger
}

func New(assistantSvc *assistant.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{assistant: assistantSvc, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{user}/export", h.handleExport)
}

// handleExport 支持 ?format=txt|json|docx|xlsx|yaml|md 与可选的 ?session=，缺省为当前会话。
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "txt"
	}
	exporter, err := exportservice.NewExporter(format)
	if err != nil {
		chathandler.RespondServiceError(w, h.logger, err)
		return
	}

	transcript, err := h.assistant.Transcript(r.Context(), chathandler.PathParam(r, "user"), r.URL.Query().Get("session"))
	if err != nil {
		chathandler.RespondServiceError(w, h.logger, err)
		return
	}

	// 先写入缓冲区，渲染失败时仍可返回 JSON 错误
	var buf bytes.Buffer
	if err := exporter.Export(transcript, &buf); err != nil {
		chathandler.RespondServiceError(w, h.logger, fmt.Errorf("render %s export: %w", format, err))
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportservice.FileName(exporter)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("write export failed", zap.String("format", format), zap.Error(err))
	}
}
