package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
)

const docxHeading = "GPT 回覆內容"

// docxExporter 输出一个标题，每行文本一个段落。
type docxExporter struct{}

func (docxExporter) Export(t Transcript, w io.Writer) error {
	doc := docx.New().WithDefaultTheme()

	// 默认主题没有标题样式，标题段落同时加粗放大
	doc.AddParagraph().Style("Heading1").AddText(docxHeading).Bold().Size("32")
	for _, line := range strings.Split(Text(t.Turns), "\n") {
		p := doc.AddParagraph()
		if line != "" {
			p.AddText(line)
		}
	}

	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func (docxExporter) Extension() string { return "docx" }
func (docxExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}
