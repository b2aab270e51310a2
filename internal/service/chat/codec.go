package chat

import (
	"errors"

	"github.com/bytedance/sonic"

	"github.com/zhouzirui/compeq-chat/backend/internal/model/chat"
)

// ConfigStd 排序 map key，保证同一映射总是序列化为相同字节。
var codec = sonic.ConfigStd

var errEmptyMapping = errors.New("no sessions in stored mapping")

func encodeSessions(sessions chat.Sessions) (string, error) {
	normalized := make(chat.Sessions, len(sessions))
	for name, turns := range sessions {
		if turns == nil {
			turns = []chat.Turn{}
		}
		normalized[name] = turns
	}
	return codec.MarshalToString(normalized)
}

func decodeSessions(raw string) (chat.Sessions, error) {
	var sessions chat.Sessions
	if err := codec.UnmarshalFromString(raw, &sessions); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, errEmptyMapping
	}
	for name, turns := range sessions {
		if turns == nil {
			sessions[name] = []chat.Turn{}
		}
	}
	return sessions, nil
}

func defaultSessions() chat.Sessions {
	return chat.Sessions{chat.DefaultSessionName: {}}
}
