package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/compeq-chat/backend/internal/model/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/storage"
)

// Conversation 是单个用户的会话上下文：全部命名会话加上当前活动会话指针。
// 所有修改操作都会立即整体写回 blob store。
type Conversation struct {
	mu        sync.Mutex
	user      string
	key       string
	store     storage.Store
	logger    *zap.Logger
	sessions  chat.Sessions
	active    string
	recovered *CorruptStoreError
	pending   map[*PendingTurn]struct{}
}

// PendingTurn 记录一轮尚未写回的对话所属的会话。等待模型期间会话被改名时跟随新名字，
// 被删除时标记为丢弃。
type PendingTurn struct {
	session string
	history []chat.Turn
	dropped bool
}

// History 返回开始提问时会话的对话副本。
func (p *PendingTurn) History() []chat.Turn { return p.history }

func newConversation(user, key string, store storage.Store, logger *zap.Logger) *Conversation {
	return &Conversation{
		user:    user,
		key:     key,
		store:   store,
		logger:  logger.With(zap.String("user", user)),
		pending: map[*PendingTurn]struct{}{},
	}
}

// Load 从 blob store 读取会话映射。内容缺失或无法解析时重置为默认会话并立即写回；
// 解析失败只通过 Recovered 报告，不作为错误返回。
func (c *Conversation) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recovered = nil
	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", c.key, err)
	}

	if ok {
		sessions, decodeErr := decodeSessions(raw)
		if decodeErr == nil {
			c.sessions = sessions
			c.active = sessions.Names()[0]
			return nil
		}
		c.recovered = &CorruptStoreError{Key: c.key, Err: decodeErr}
		c.logger.Warn("stored conversation unreadable, resetting", zap.String("key", c.key), zap.Error(decodeErr))
	}

	c.sessions = defaultSessions()
	c.active = chat.DefaultSessionName
	return c.persistLocked(ctx)
}

// Recovered 返回最近一次 Load 的自愈原因，没有发生自愈时为 nil。
func (c *Conversation) Recovered() *CorruptStoreError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recovered
}

func (c *Conversation) User() string { return c.user }

// Active 返回当前活动会话名。
func (c *Conversation) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Names 按排序返回所有会话名。
func (c *Conversation) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions.Names()
}

// Summaries 返回会话列表视图。
func (c *Conversation) Summaries() []chat.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := c.sessions.Names()
	summaries := make([]chat.Summary, 0, len(names))
	for _, name := range names {
		summaries = append(summaries, chat.Summary{
			Name:   name,
			Turns:  len(c.sessions[name]),
			Active: name == c.active,
		})
	}
	return summaries
}

// History 返回指定会话的对话副本。
func (c *Conversation) History(name string) ([]chat.Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns, ok := c.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	return append([]chat.Turn(nil), turns...), nil
}

// ActiveHistory 返回活动会话名及其对话副本。
func (c *Conversation) ActiveHistory() (string, []chat.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, append([]chat.Turn(nil), c.sessions[c.active]...)
}

// Snapshot 深拷贝整个会话映射。
func (c *Conversation) Snapshot() chat.Sessions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions.Clone()
}

// Create 新建空会话并设为活动会话。
func (c *Conversation) Create(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sessions[name]; exists {
		return fmt.Errorf("%w: %q", ErrNameCollision, name)
	}

	prev := c.active
	c.sessions[name] = []chat.Turn{}
	c.active = name
	if err := c.persistLocked(ctx); err != nil {
		delete(c.sessions, name)
		c.active = prev
		return err
	}
	return nil
}

// Rename 把活动会话改名为 newName。
func (c *Conversation) Rename(ctx context.Context, newName string) error {
	if err := validName(newName); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sessions[newName]; exists {
		return fmt.Errorf("%w: %q", ErrNameCollision, newName)
	}

	old := c.active
	turns := c.sessions[old]
	c.sessions[newName] = turns
	delete(c.sessions, old)
	c.active = newName
	if err := c.persistLocked(ctx); err != nil {
		delete(c.sessions, newName)
		c.sessions[old] = turns
		c.active = old
		return err
	}
	for p := range c.pending {
		if p.session == old {
			p.session = newName
		}
	}
	return nil
}

// Delete 删除会话。映射变空时重建默认会话；活动指针重置为排序后的第一个会话。
func (c *Conversation) Delete(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns, ok := c.sessions[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}

	prev := c.active
	delete(c.sessions, name)
	recreated := false
	if len(c.sessions) == 0 {
		c.sessions[chat.DefaultSessionName] = []chat.Turn{}
		recreated = true
	}
	c.active = c.sessions.Names()[0]

	if err := c.persistLocked(ctx); err != nil {
		if recreated {
			delete(c.sessions, chat.DefaultSessionName)
		}
		c.sessions[name] = turns
		c.active = prev
		return err
	}
	for p := range c.pending {
		if p.session == name {
			p.dropped = true
		}
	}
	return nil
}

// Select 切换活动会话。活动指针只存在于内存中，不写回。
func (c *Conversation) Select(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[name]; !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	c.active = name
	return nil
}

// BeginTurn 以活动会话开始一轮对话，之后必须调用 CommitTurn。
func (c *Conversation) BeginTurn() *PendingTurn {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := &PendingTurn{
		session: c.active,
		history: append([]chat.Turn(nil), c.sessions[c.active]...),
	}
	c.pending[p] = struct{}{}
	return p
}

// CommitTurn 把 turn 追加到 p 所属的会话，返回该会话当前的名字。
// 会话在此期间被删除时返回 ErrSessionNotFound。
func (c *Conversation) CommitTurn(ctx context.Context, p *PendingTurn, turn chat.Turn) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, p)
	if p.dropped {
		return p.session, fmt.Errorf("%w: %q was deleted", ErrSessionNotFound, p.session)
	}
	turns, ok := c.sessions[p.session]
	if !ok {
		return p.session, fmt.Errorf("%w: %q", ErrSessionNotFound, p.session)
	}

	c.sessions[p.session] = append(turns, turn)
	if err := c.persistLocked(ctx); err != nil {
		c.sessions[p.session] = turns
		return p.session, err
	}
	return p.session, nil
}

// Append 在会话末尾追加一轮对话。
func (c *Conversation) Append(ctx context.Context, name string, turn chat.Turn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns, ok := c.sessions[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}

	c.sessions[name] = append(turns, turn)
	if err := c.persistLocked(ctx); err != nil {
		c.sessions[name] = turns
		return err
	}
	return nil
}

// Persist 把当前映射整体写回 blob store。
func (c *Conversation) Persist(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked(ctx)
}

func (c *Conversation) persistLocked(ctx context.Context) error {
	raw, err := encodeSessions(c.sessions)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if err := c.store.Set(ctx, c.key, raw); err != nil {
		return fmt.Errorf("persist conversation %s: %w", c.key, err)
	}
	c.logger.Debug("conversation persisted", zap.Int("sessions", len(c.sessions)))
	return nil
}
