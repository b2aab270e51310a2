package export

import (
	"fmt"
	"io"

	"github.com/tidwall/sjson"
)

// jsonExporter 输出 {"response": "<文本记录>"}，转义交给 sjson 处理。
type jsonExporter struct{}

func (jsonExporter) Export(t Transcript, w io.Writer) error {
	body, err := sjson.Set("{}", "response", Text(t.Turns))
	if err != nil {
		return fmt.Errorf("build json envelope: %w", err)
	}
	_, err = io.WriteString(w, body)
	return err
}

func (jsonExporter) Extension() string   { return "json" }
func (jsonExporter) ContentType() string { return "application/json; charset=utf-8" }
