package model

import "strings"

// Language is one entry of the backend's runtime catalog. Entries are passed
// through exactly as the backend reports them.
type Language struct {
	Language string   `json:"language"`
	Version  string   `json:"version"`
	Aliases  []string `json:"aliases"`
	Runtime  string   `json:"runtime,omitempty"`
}

// Matches reports whether name equals the entry's language or one of its
// aliases, ignoring case.
func (l Language) Matches(name string) bool {
	if strings.EqualFold(l.Language, name) {
		return true
	}
	for _, alias := range l.Aliases {
		if strings.EqualFold(alias, name) {
			return true
		}
	}
	return false
}
