package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/compeq-chat/backend/internal/model/persona"
)

// BuildSystemPrompt renders a persona into the fixed system instruction. Personas without
// an instruction produce an empty prompt, which omits the system message entirely.
func BuildSystemPrompt(p persona.Persona) string {
	if strings.TrimSpace(p.Instruction) == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(p.Instruction)
	if p.Tone != "" {
		fmt.Fprintf(&b, "\n語氣：%s", p.Tone)
	}
	if len(p.Rules) > 0 {
		b.WriteString("\n回答規則：")
		for _, rule := range p.Rules {
			b.WriteString("\n- ")
			b.WriteString(rule)
		}
	}
	return b.String()
}

// ResolveSystemPrompt 优先使用显式配置的指令，否则使用角色生成的指令。
func ResolveSystemPrompt(explicit, personaID string, personas persona.Store) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}
	if personaID == "" {
		return "", nil
	}
	p, ok := personas.FindByID(personaID)
	if !ok {
		return "", fmt.Errorf("persona %q not found", personaID)
	}
	return BuildSystemPrompt(p), nil
}
