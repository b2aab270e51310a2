package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/compeq-chat/backend/internal/model/chat"
)

type yamlExporter struct{}

func (yamlExporter) Export(t Transcript, w io.Writer) error {
	if t.Turns == nil {
		t.Turns = []chat.Turn{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return err
	}
	return enc.Close()
}

func (yamlExporter) Extension() string   { return "yaml" }
func (yamlExporter) ContentType() string { return "application/yaml; charset=utf-8" }
