package chat

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/compeq-chat/backend/internal/service/assistant"
	chatService "github.com/zhouzirui/compeq-chat/backend/internal/service/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/export"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/extract"
	"github.com/zhouzirui/compeq-chat/backend/pkg/utils"
)

// StatusFor 把服务层错误映射为 HTTP 状态码。
func StatusFor(err error) int {
	var decodeErr *extract.DecodeError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, chatService.ErrInvalidUser),
		errors.Is(err, chatService.ErrInvalidName),
		errors.Is(err, assistant.ErrEmptyPrompt),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, utils.ErrBadForm):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrNameCollision):
		return http.StatusConflict
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, assistant.ErrModelOffline):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondServiceError 写出错误响应；5xx 同时记录日志。
func RespondServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	utils.RespondError(w, status, err.Error())
}

// PathParam 返回解码后的路由参数。
// chi 只在 URL 带有 RawPath 时按转义形式匹配，其余情况参数已经解码过，不能再解一次。
func PathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}
