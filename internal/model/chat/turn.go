package chat

// Turn is one question/answer exchange. Failed marks turns whose answer is the
// error text of a failed completion call.
type Turn struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
	Failed   bool   `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Succeeded filters out failed turns, keeping chronological order.
func Succeeded(turns []Turn) []Turn {
	kept := make([]Turn, 0, len(turns))
	for _, turn := range turns {
		if !turn.Failed {
			kept = append(kept, turn)
		}
	}
	return kept
}
