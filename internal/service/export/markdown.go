package export

import (
	"fmt"
	"io"
	"strings"
)

type markdownExporter struct{}

func (markdownExporter) Export(t Transcript, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", t.Session)
	for i, turn := range t.Turns {
		fmt.Fprintf(&b, "\n## %d. 你\n\n%s\n\n## GPT", i+1, turn.Question)
		if turn.Failed {
			b.WriteString(" (失敗)")
		}
		fmt.Fprintf(&b, "\n\n%s\n", turn.Answer)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (markdownExporter) Extension() string   { return "md" }
func (markdownExporter) ContentType() string { return "text/markdown; charset=utf-8" }
