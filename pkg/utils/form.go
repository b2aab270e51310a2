package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// ErrBadForm 表示请求体无法解析。
var ErrBadForm = errors.New("invalid request body")

// AskForm 是一次提问请求携带的内容。
type AskForm struct {
	Prompt    string
	FileName  string
	MediaType string
	Data      []byte
	HasFile   bool
}

// ReadAskForm 从 multipart 或 JSON 请求体中读取提问与可选附件。
func ReadAskForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (AskForm, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if mediaType == "application/json" {
		var payload struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return AskForm{}, fmt.Errorf("%w: %w", ErrBadForm, err)
		}
		return AskForm{Prompt: payload.Prompt}, nil
	}

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return AskForm{}, fmt.Errorf("%w: multipart: %w", ErrBadForm, err)
	}

	form := AskForm{Prompt: r.FormValue("prompt")}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil
	}
	if err != nil {
		return AskForm{}, fmt.Errorf("%w: read upload: %w", ErrBadForm, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return AskForm{}, fmt.Errorf("%w: read upload: %w", ErrBadForm, err)
	}

	form.HasFile = true
	form.FileName = header.Filename
	form.MediaType = strings.TrimSpace(header.Header.Get("Content-Type"))
	form.Data = data
	return form, nil
}
