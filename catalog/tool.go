package catalog

import (
	"fmt"
	"strings"
)

// Tool is one catalog record. Name is the unique key.
type Tool struct {
	Name        string   `json:"name" yaml:"name"`
	URL         string   `json:"url" yaml:"url"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags" yaml:"tags"`
}

// SearchText is the text matched against search tokens: name, description
// and tags joined by single spaces, lower-cased.
func (t Tool) SearchText() string {
	return strings.ToLower(t.Name + " " + t.Description + " " + strings.Join(t.Tags, " "))
}

// Validate rejects records with an empty or duplicate name.
func Validate(tools []Tool) error {
	seen := make(map[string]int, len(tools))
	for i, t := range tools {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%w: record %d has no name", ErrInvalidCatalog, i)
		}
		if j, dup := seen[t.Name]; dup {
			return fmt.Errorf("%w: %q at records %d and %d", ErrInvalidCatalog, t.Name, j, i)
		}
		seen[t.Name] = i
	}
	return nil
}
