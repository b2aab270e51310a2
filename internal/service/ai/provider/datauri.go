// Package provider adapts third-party LLM clients to the eino chat model interface.
package provider

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
)

var ErrToolsUnsupported = errors.New("tool calling is not supported by this provider")

type inlineImage struct {
	MediaType string
	Base64    string
}

// parseDataURI 解析 data:<type>;base64,<payload> 形式的图片地址。
func parseDataURI(uri string) (inlineImage, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return inlineImage{}, fmt.Errorf("only data URIs are supported for images, got %.32q", uri)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return inlineImage{}, errors.New("malformed data URI")
	}
	mediaType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return inlineImage{}, errors.New("data URI must be base64 encoded")
	}
	return inlineImage{MediaType: mediaType, Base64: payload}, nil
}

func (i inlineImage) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(i.Base64)
}

// textOf 合并消息中的纯文本部分。
func textOf(msg *schema.Message) string {
	if len(msg.MultiContent) == 0 {
		return msg.Content
	}
	var parts []string
	if msg.Content != "" {
		parts = append(parts, msg.Content)
	}
	for _, part := range msg.MultiContent {
		if part.Type == schema.ChatMessagePartTypeText && part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func imagesOf(msg *schema.Message) ([]inlineImage, error) {
	var images []inlineImage
	for _, part := range msg.MultiContent {
		if part.Type != schema.ChatMessagePartTypeImageURL || part.ImageURL == nil {
			continue
		}
		img, err := parseDataURI(part.ImageURL.URL)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}
