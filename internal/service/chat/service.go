package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/zhouzirui/compeq-chat/backend/internal/storage"
)

// Service 按用户名管理会话上下文，同一用户的请求共享一个 Conversation。
type Service struct {
	store  storage.Store
	logger *zap.Logger

	mu    sync.Mutex
	convs map[string]*Conversation
}

// NewService bootstraps the conversation service on top of a blob store.
func NewService(store storage.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger,
		convs:  make(map[string]*Conversation),
	}
}

// Open returns the user's conversation, loading it from the store on first use.
func (s *Service) Open(ctx context.Context, user string) (*Conversation, error) {
	key, err := BlobKey(user)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.convs[user]; ok {
		return conv, nil
	}

	conv := newConversation(user, key, s.store, s.logger)
	if err := conv.Load(ctx); err != nil {
		return nil, err
	}
	s.convs[user] = conv
	return conv, nil
}

// Close drops the in-memory context for user. The stored blob is kept.
func (s *Service) Close(user string) {
	s.mu.Lock()
	delete(s.convs, user)
	s.mu.Unlock()
}
