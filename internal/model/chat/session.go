package chat

import "sort"

// DefaultSessionName names the session recreated whenever the mapping would be empty.
const DefaultSessionName = "預設對話"

// Sessions maps a session name to its turns in chronological order.
type Sessions map[string][]Turn

// Names returns the session names in sorted order.
func (s Sessions) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone deep-copies the mapping.
func (s Sessions) Clone() Sessions {
	copied := make(Sessions, len(s))
	for name, turns := range s {
		copied[name] = append([]Turn(nil), turns...)
	}
	return copied
}

// Summary describes a session for listings.
type Summary struct {
	Name   string `json:"name"`
	Turns  int    `json:"turns"`
	Active bool   `json:"active"`
}
