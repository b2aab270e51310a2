package chat

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidUser     = errors.New("invalid username")
	ErrInvalidName     = errors.New("session name must not be blank")
	ErrNameCollision   = errors.New("session name already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// CorruptStoreError 表示存储内容无法解析，会话已重置为默认值。
type CorruptStoreError struct {
	Key string
	Err error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("stored conversation %s is unreadable, reset to default: %v", e.Key, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

const maxUserLen = 64

// BlobKey 返回用户会话在 blob store 中的键。
func BlobKey(user string) (string, error) {
	if err := validateUser(user); err != nil {
		return "", err
	}
	return "chat_history_" + user + ".json", nil
}

func validateUser(user string) error {
	switch {
	case strings.TrimSpace(user) == "":
		return fmt.Errorf("%w: empty", ErrInvalidUser)
	case utf8.RuneCountInString(user) > maxUserLen:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidUser, maxUserLen)
	case strings.ContainsAny(user, `/\`), strings.Contains(user, ".."), strings.HasPrefix(user, "."):
		return fmt.Errorf("%w: %q", ErrInvalidUser, user)
	}
	return nil
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidName
	}
	return nil
}
