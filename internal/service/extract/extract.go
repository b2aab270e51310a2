// Package extract turns uploaded files into either PNG image bytes or a bounded text excerpt.
package extract

import (
	"context"
	"fmt"
	"image"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zhouzirui/compeq-chat/backend/internal/config"
	"github.com/zhouzirui/compeq-chat/backend/pkg/utils"
)

// 按声明的媒体类型分派，大小写敏感。
const (
	MediaPDF  = "application/pdf"
	MediaText = "text/plain"
	MediaDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaXlsx = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	imagePrefix = "image/"
)

// Kind tags the variant held by Content.
type Kind string

const (
	KindImage       Kind = "image"
	KindText        Kind = "text"
	KindUnsupported Kind = "unsupported"
)

const (
	DocxFull     = "full"
	DocxKeywords = "keywords"
	SheetCells   = "cells"
	SheetSummary = "summary"
)

// Upload is a file as received from the client.
type Upload struct {
	Name      string
	MediaType string
	Data      []byte
}

// Content is the extraction result. PNG and Preview are set for KindImage, Text for KindText.
type Content struct {
	Kind    Kind
	Text    string
	PNG     []byte
	Preview image.Image
}

// IsImage reports whether c carries image bytes.
func (c *Content) IsImage() bool { return c != nil && c.Kind == KindImage }

// IsText reports whether c carries a text excerpt.
func (c *Content) IsText() bool { return c != nil && c.Kind == KindText }

// DecodeError 表示文件内容与声明的类型不符或已损坏。
type DecodeError struct {
	MediaType string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode %s upload: %v", e.MediaType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Options 控制摘录长度与 Word/Excel 的呈现方式。
type Options struct {
	MaxChars     int
	DocxMode     string
	DocxKeywords []string
	SheetMode    string
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		MaxChars:     1500,
		DocxMode:     DocxFull,
		DocxKeywords: []string{"問題", "建議", "風險", "錯誤", "problem", "suggestion", "risk", "error"},
		SheetMode:    SheetCells,
	}
}

// OptionsFromConfig converts the extract section of the service config.
func OptionsFromConfig(cfg config.ExtractConfig) Options {
	opts := DefaultOptions()
	if cfg.MaxChars > 0 {
		opts.MaxChars = cfg.MaxChars
	}
	if cfg.DocxMode != "" {
		opts.DocxMode = cfg.DocxMode
	}
	if len(cfg.DocxKeywords) > 0 {
		opts.DocxKeywords = append([]string(nil), cfg.DocxKeywords...)
	}
	if cfg.SheetMode != "" {
		opts.SheetMode = cfg.SheetMode
	}
	return opts
}

// Extractor is stateless apart from its options and is safe for concurrent use.
type Extractor struct {
	opts   Options
	logger *zap.Logger
	tracer trace.Tracer
}

// New creates an Extractor.
func New(opts Options, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultOptions().MaxChars
	}
	return &Extractor{
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer("github.com/zhouzirui/compeq-chat/backend/internal/service/extract"),
	}
}

// Extract dispatches on the declared media type. Parameters such as "; charset=utf-8"
// are ignored. Malformed content yields a *DecodeError.
func (e *Extractor) Extract(ctx context.Context, upload Upload) (Content, error) {
	mediaType := baseMediaType(upload.MediaType)

	_, span := e.tracer.Start(ctx, "extract.Extract", trace.WithAttributes(
		attribute.String("upload.media_type", mediaType),
		attribute.Int("upload.size", len(upload.Data)),
	))
	defer span.End()

	content, err := e.dispatch(mediaType, upload.Data)
	if err != nil {
		err = &DecodeError{MediaType: mediaType, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		e.logger.Warn("upload decode failed",
			zap.String("file", upload.Name),
			zap.String("mediaType", mediaType),
			zap.Error(err),
		)
		return Content{}, err
	}

	span.SetAttributes(attribute.String("extract.kind", string(content.Kind)))
	e.logger.Debug("upload extracted",
		zap.String("file", upload.Name),
		zap.String("kind", string(content.Kind)),
		zap.Int("chars", utf8.RuneCountInString(content.Text)),
	)
	return content, nil
}

func (e *Extractor) dispatch(mediaType string, data []byte) (Content, error) {
	switch {
	case strings.HasPrefix(mediaType, imagePrefix):
		return decodeImage(data)
	case mediaType == MediaPDF:
		text, err := pdfText(data)
		if err != nil {
			return Content{}, err
		}
		return e.text(strings.TrimSpace(text)), nil
	case mediaType == MediaText:
		if !utf8.Valid(data) {
			return Content{}, fmt.Errorf("text is not valid UTF-8")
		}
		return e.text(string(data)), nil
	case mediaType == MediaDocx:
		paragraphs, err := docxParagraphs(data)
		if err != nil {
			return Content{}, err
		}
		if e.opts.DocxMode == DocxKeywords {
			paragraphs = filterParagraphs(paragraphs, e.opts.DocxKeywords)
		}
		return e.text(strings.TrimSpace(strings.Join(paragraphs, "\n"))), nil
	case mediaType == MediaXlsx:
		rows, err := firstSheetRows(data)
		if err != nil {
			return Content{}, err
		}
		if e.opts.SheetMode == SheetSummary {
			return e.text(renderSummary(rows)), nil
		}
		return e.text(renderCells(rows)), nil
	default:
		return Content{Kind: KindUnsupported}, nil
	}
}

func (e *Extractor) text(s string) Content {
	return Content{Kind: KindText, Text: utils.Head(s, e.opts.MaxChars)}
}

func baseMediaType(declared string) string {
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = declared[:i]
	}
	return strings.TrimSpace(declared)
}
