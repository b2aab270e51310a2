// Package ws exposes the chat over a WebSocket: one connection per user, every
// session operation and question travels as a typed JSON frame.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	chathandler "github.com/zhouzirui/compeq-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/assistant"
	chatservice "github.com/zhouzirui/compeq-chat/backend/internal/service/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/extract"
)

const (
	defaultReadTimeout  = 60 * time.Second
	defaultPingInterval = 54 * time.Second
	writeTimeout        = 10 * time.Second
)

// Handler WebSocket 对话处理器
type Handler struct {
	assistant *assistant.Service
	maxUpload int64
	logger    *zap.Logger
	upgrader  websocket.Upgrader

	// pingInterval 必须小于 readTimeout，否则空闲连接会在收到 pong 之前超时
	readTimeout  time.Duration
	pingInterval time.Duration
}

// New 创建 WebSocket 处理器
func New(assistantSvc *assistant.Service, maxUpload int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		assistant: assistantSvc,
		maxUpload: maxUpload,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		readTimeout:  defaultReadTimeout,
		pingInterval: defaultPingInterval,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/users/{user}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// AskMessage 提问消息，文件内容以 base64 编码。
type AskMessage struct {
	Prompt string       `json:"prompt"`
	File   *FileMessage `json:"file,omitempty"`
}

type FileMessage struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Data      []byte `json:"data"`
}

// NameMessage 会话管理消息
type NameMessage struct {
	Name string `json:"name"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connection 串行化写操作，gorilla 连接不允许并发写。
type connection struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	logger *zap.Logger
}

func (c *connection) send(msgType string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	msg := outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().Unix()}
	if err := c.conn.WriteJSON(msg); err != nil {
		c.logger.Debug("websocket write failed", zap.String("type", msgType), zap.Error(err))
	}
}

func (c *connection) sendError(err error) {
	c.send("error", map[string]any{
		"message": err.Error(),
		"status":  chathandler.StatusFor(err),
	})
}

func (c *connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket 处理 WebSocket 连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := chathandler.PathParam(r, "user")

	// 升级前加载会话，非法用户名直接以 HTTP 错误返回
	conv, err := h.assistant.Chats().Open(r.Context(), user)
	if err != nil {
		chathandler.RespondServiceError(w, h.logger, err)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer raw.Close()

	logger := h.logger.With(zap.String("user", user))
	conn := &connection{conn: raw, logger: logger}
	logger.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if h.maxUpload > 0 {
		// base64 膨胀约 4/3，再留出 JSON 包装的余量
		raw.SetReadLimit(h.maxUpload*4/3 + 64<<10)
	}
	_ = raw.SetReadDeadline(time.Now().Add(h.readTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(h.readTimeout))
	})

	go h.pingLoop(ctx, conn)

	conn.send("connected", chathandler.ListSessions(conv))

	for {
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		h.handleMessage(ctx, conn, conv, user, &msg)

		// 模型调用期间没有读操作，pong 不会被处理，处理完消息后重新计时
		_ = raw.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *connection, conv *chatservice.Conversation, user string, msg *inboundMessage) {
	switch msg.Type {
	case "ask":
		h.handleAsk(ctx, conn, user, msg.Data)
	case "sessions":
		conn.send("sessions", chathandler.ListSessions(conv))
	case "create", "select", "rename", "delete":
		var payload NameMessage
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			conn.send("error", map[string]any{"message": "invalid " + msg.Type + " payload", "status": http.StatusBadRequest})
			return
		}
		if err := applySessionOp(ctx, conv, msg.Type, payload.Name); err != nil {
			conn.sendError(err)
			return
		}
		conn.send("sessions", chathandler.ListSessions(conv))
	default:
		conn.send("error", map[string]any{"message": "unsupported message type: " + msg.Type, "status": http.StatusBadRequest})
	}
}

func applySessionOp(ctx context.Context, conv *chatservice.Conversation, op, name string) error {
	switch op {
	case "create":
		return conv.Create(ctx, name)
	case "select":
		return conv.Select(name)
	case "rename":
		return conv.Rename(ctx, name)
	default:
		return conv.Delete(ctx, name)
	}
}

func (h *Handler) handleAsk(ctx context.Context, conn *connection, user string, raw json.RawMessage) {
	var ask AskMessage
	if err := json.Unmarshal(raw, &ask); err != nil {
		conn.send("error", map[string]any{"message": "invalid ask payload", "status": http.StatusBadRequest})
		return
	}

	question := assistant.Question{User: user, Prompt: ask.Prompt}
	if ask.File != nil && len(ask.File.Data) > 0 {
		question.Upload = &extract.Upload{
			Name:      ask.File.Name,
			MediaType: ask.File.MediaType,
			Data:      ask.File.Data,
		}
	}

	conn.send("thinking", nil)
	answer, err := h.assistant.Ask(ctx, question, func(delta string) {
		conn.send("delta", map[string]string{"content": delta})
	})
	if err != nil {
		conn.sendError(err)
		return
	}
	conn.send("reply", answer)
}

// pingLoop 定期发送 ping 消息
func (h *Handler) pingLoop(ctx context.Context, conn *connection) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
