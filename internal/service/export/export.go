// Package export renders a session transcript into downloadable formats.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/zhouzirui/compeq-chat/backend/internal/model/chat"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Transcript is the materialized content of one session.
type Transcript struct {
	User    string      `yaml:"user"`
	Session string      `yaml:"session"`
	Turns   []chat.Turn `yaml:"turns"`
}

// Exporter writes a transcript in one format.
type Exporter interface {
	Export(t Transcript, w io.Writer) error
	Extension() string
	ContentType() string
}

// Formats lists the supported format names in display order.
var Formats = []string{"txt", "json", "docx", "xlsx", "yaml", "md"}

// NewExporter returns the exporter registered under format.
func NewExporter(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "txt", "":
		return textExporter{}, nil
	case "json":
		return jsonExporter{}, nil
	case "docx":
		return docxExporter{}, nil
	case "xlsx":
		return xlsxExporter{}, nil
	case "yaml", "yml":
		return yamlExporter{}, nil
	case "md", "markdown":
		return markdownExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// FileName builds the download name for a transcript.
func FileName(e Exporter) string {
	if e.Extension() == "xlsx" {
		return "chat_history.xlsx"
	}
	return "response." + e.Extension()
}

// Text renders the plain transcript: "你：q\nGPT：a" blocks separated by a blank line.
func Text(turns []chat.Turn) string {
	blocks := make([]string, 0, len(turns))
	for _, turn := range turns {
		blocks = append(blocks, "你："+turn.Question+"\nGPT："+turn.Answer)
	}
	return strings.Join(blocks, "\n\n")
}

type textExporter struct{}

func (textExporter) Export(t Transcript, w io.Writer) error {
	_, err := io.WriteString(w, Text(t.Turns))
	return err
}

func (textExporter) Extension() string   { return "txt" }
func (textExporter) ContentType() string { return "text/plain; charset=utf-8" }
