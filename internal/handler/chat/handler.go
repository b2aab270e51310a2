package chat

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/compeq-chat/backend/internal/model/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/assistant"
	chatService "github.com/zhouzirui/compeq-chat/backend/internal/service/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/extract"
	"github.com/zhouzirui/compeq-chat/backend/pkg/utils"
)

// Handler 会话管理与单轮问答的HTTP处理器
type Handler struct {
	assistant *assistant.Service
	maxUpload int64
	logger    *zap.Logger
}

// New 创建聊天处理器
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

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{user}/sessions", h.handleListSessions)
	r.Post("/users/{user}/sessions", h.handleCreateSession)
	r.Put("/users/{user}/sessions/active", h.handleSelectSession)
	r.Patch("/users/{user}/sessions/active", h.handleRenameSession)
	r.Delete("/users/{user}/sessions/{name}", h.handleDeleteSession)
	r.Get("/users/{user}/sessions/{name}/turns", h.handleListTurns)
	r.Post("/users/{user}/chat", h.handleAsk)
	r.Get("/previews/{id}", h.handlePreview)
}

// SessionList 是会话列表接口的响应体。
type SessionList struct {
	Active   string         `json:"active"`
	Sessions []chat.Summary `json:"sessions"`
	Warning  string         `json:"warning,omitempty"`
}

// ListSessions 构造会话列表，存储自愈时附带警告。
func ListSessions(conv *chatService.Conversation) SessionList {
	list := SessionList{
		Active:   conv.Active(),
		Sessions: conv.Summaries(),
	}
	if recovered := conv.Recovered(); recovered != nil {
		list.Warning = recovered.Error()
	}
	return list
}

type namePayload struct {
	Name string `json:"name"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*chatService.Conversation, bool) {
	conv, err := h.assistant.Chats().Open(r.Context(), PathParam(r, "user"))
	if err != nil {
		RespondServiceError(w, h.logger, err)
		return nil, false
	}
	return conv, true
}

func decodeName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload namePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	return payload.Name, true
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.open(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, ListSessions(conv))
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.open(w, r)
	if !ok {
		return
	}
	name, ok := decodeName(w, r)
	if !ok {
		return
	}
	if err := conv.Create(r.Context(), name); err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, ListSessions(conv))
}

func (h *Handler) handleSelectSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.open(w, r)
	if !ok {
		return
	}
	name, ok := decodeName(w, r)
	if !ok {
		return
	}
	if err := conv.Select(name); err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ListSessions(conv))
}

func (h *Handler) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.open(w, r)
	if !ok {
		return
	}
	name, ok := decodeName(w, r)
	if !ok {
		return
	}
	if err := conv.Rename(r.Context(), name); err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ListSessions(conv))
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := conv.Delete(r.Context(), PathParam(r, "name")); err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, ListSessions(conv))
}

func (h *Handler) handleListTurns(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.open(w, r)
	if !ok {
		return
	}
	name := PathParam(r, "name")
	turns, err := conv.History(name)
	if err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"session": name,
		"turns":   turns,
	})
}

// QuestionFromForm 把表单转换为一次提问。
func QuestionFromForm(user string, form utils.AskForm) assistant.Question {
	q := assistant.Question{User: user, Prompt: form.Prompt}
	if form.HasFile {
		q.Upload = &extract.Upload{
			Name:      form.FileName,
			MediaType: form.MediaType,
			Data:      form.Data,
		}
	}
	return q
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	form, err := utils.ReadAskForm(w, r, h.maxUpload)
	if err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}

	answer, err := h.assistant.Ask(r.Context(), QuestionFromForm(PathParam(r, "user"), form), nil)
	if err != nil {
		RespondServiceError(w, h.logger, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, answer)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	png, ok := h.assistant.Previews().Take(chi.URLParam(r, "id"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "preview not found")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.logger.Warn("failed to write preview", zap.Error(err))
	}
}
