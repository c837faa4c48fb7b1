package extract

import (
	"strings"

	"github.com/hyperjump/kensho/internal/config"
)

// Dictionary tags requirement text with compliance standards by keyword
// match. It is read-only after construction.
type Dictionary struct {
	standards []config.Standard
	known     map[string]bool
}

// NewDictionary builds a Dictionary from configured standards.
func NewDictionary(standards []config.Standard) *Dictionary {
	known := make(map[string]bool, len(standards))
	for _, s := range standards {
		known[s.Name] = true
	}
	return &Dictionary{standards: standards, known: known}
}

// Match returns the names of all standards whose keywords appear in text,
// case-insensitively, in dictionary order. The standard's own name always
// counts as a keyword.
func (d *Dictionary) Match(text string) []string {
	lower := strings.ToLower(text)
	var names []string
	for _, s := range d.standards {
		if strings.Contains(lower, strings.ToLower(s.Name)) {
			names = append(names, s.Name)
			continue
		}
		for _, kw := range s.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				names = append(names, s.Name)
				break
			}
		}
	}
	return names
}

// Known reports whether name is a standard in the dictionary.
func (d *Dictionary) Known(name string) bool {
	return d.known[name]
}

// Names returns all standard names in dictionary order.
func (d *Dictionary) Names() []string {
	names := make([]string, len(d.standards))
	for i, s := range d.standards {
		names[i] = s.Name
	}
	return names
}
