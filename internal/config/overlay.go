package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// overlay 是可选 TOML 配置文件的结构，环境变量优先于文件中的值。
type overlay struct {
	AI      aiOverlay      `toml:"ai"`
	Extract extractOverlay `toml:"extract"`
}

type aiOverlay struct {
	Model             string   `toml:"model"`
	PersonaID         string   `toml:"persona"`
	SystemInstruction string   `toml:"system_instruction"`
	Temperature       *float64 `toml:"temperature"`
}

type extractOverlay struct {
	DocxMode     string   `toml:"docx_mode"`
	DocxKeywords []string `toml:"docx_keywords"`
	SheetMode    string   `toml:"sheet_mode"`
}

func loadOverlay(path string) (overlay, error) {
	if path == "" {
		return overlay{}, nil
	}

	var o overlay
	if _, err := toml.DecodeFile(path, &o); err != nil {
		return overlay{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return o, nil
}
