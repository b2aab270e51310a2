package ai

import (
	"encoding/base64"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/compeq-chat/backend/internal/model/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/extract"
	"github.com/zhouzirui/compeq-chat/backend/pkg/utils"
)

const (
	summaryLabel   = "先前對話摘要："
	fileBlockLabel = "\n\n以下是檔案內容：\n"
)

// WindowOptions 控制每次请求发送给模型的上下文范围。
type WindowOptions struct {
	SystemInstruction string
	// Lookback 是原样附带的最近轮数。
	Lookback int
	// 成功轮数超过 SummaryThreshold 时，较早的轮次压缩成一条摘要。
	SummaryThreshold int
	SummaryChars     int
	TurnChars        int
	FileBlockChars   int
}

// DefaultWindowOptions returns the standard limits.
func DefaultWindowOptions() WindowOptions {
	return WindowOptions{
		Lookback:         2,
		SummaryThreshold: 4,
		SummaryChars:     30,
		TurnChars:        1000,
		FileBlockChars:   1500,
	}
}

// BuildMessages assembles the outbound message list. Failed turns are skipped, so error
// replies never reach the summary or the lookback window.
func BuildMessages(history []chat.Turn, prompt string, content *extract.Content, opts WindowOptions) []*schema.Message {
	turns := chat.Succeeded(history)
	messages := make([]*schema.Message, 0, 3+2*opts.Lookback)

	if opts.SystemInstruction != "" {
		messages = append(messages, schema.SystemMessage(opts.SystemInstruction))
	}

	recentFrom := len(turns) - opts.Lookback
	if recentFrom < 0 {
		recentFrom = 0
	}

	if len(turns) > opts.SummaryThreshold {
		questions := make([]string, 0, recentFrom)
		for _, turn := range turns[:recentFrom] {
			questions = append(questions, utils.Head(turn.Question, opts.SummaryChars))
		}
		messages = append(messages, schema.SystemMessage(summaryLabel+strings.Join(questions, "; ")))
	}

	for _, turn := range turns[recentFrom:] {
		messages = append(messages,
			schema.UserMessage(utils.Truncate(turn.Question, opts.TurnChars)),
			schema.AssistantMessage(utils.Truncate(turn.Answer, opts.TurnChars), nil),
		)
	}

	return append(messages, currentTurn(prompt, content, opts))
}

func currentTurn(prompt string, content *extract.Content, opts WindowOptions) *schema.Message {
	switch {
	case content.IsImage():
		return &schema.Message{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{Type: schema.ChatMessagePartTypeText, Text: utils.Truncate(prompt, opts.TurnChars)},
				{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{
					URL: ImageDataURI(content.PNG),
				}},
			},
		}
	case content.IsText():
		return schema.UserMessage(utils.Truncate(prompt+fileBlockLabel+content.Text, opts.FileBlockChars))
	default:
		return schema.UserMessage(utils.Truncate(prompt, opts.TurnChars))
	}
}

// ImageDataURI embeds PNG bytes as a data URI.
func ImageDataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
