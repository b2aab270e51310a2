package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// docxParagraphs 返回正文中的段落文本，表格内的段落不计入。
func docxParagraphs(data []byte) ([]string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	// Parse 不会因缺少正文而报错，只有解析过 document.xml 才会设置根元素名
	if doc.Document.XMLName.Local != "document" {
		return nil, errors.New("docx has no word/document.xml")
	}

	var paragraphs []string
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			paragraphs = append(paragraphs, paragraphText(p))
		}
	}
	return paragraphs, nil
}

func paragraphText(p *docx.Paragraph) string {
	var b strings.Builder
	for _, child := range p.Children {
		switch c := child.(type) {
		case *docx.Run:
			writeRunText(&b, c)
		case *docx.Hyperlink:
			writeRunText(&b, &c.Run)
		}
	}
	return b.String()
}

func writeRunText(b *strings.Builder, r *docx.Run) {
	for _, child := range r.Children {
		switch c := child.(type) {
		case *docx.Text:
			b.WriteString(c.Text)
		case *docx.Tab:
			b.WriteByte('\t')
		case *docx.BarterRabbet:
			b.WriteByte('\n')
		}
	}
}

func filterParagraphs(paragraphs, keywords []string) []string {
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		for _, k := range keywords {
			if k != "" && strings.Contains(p, k) {
				kept = append(kept, p)
				break
			}
		}
	}
	return kept
}
