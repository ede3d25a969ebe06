// Package template substitutes {{variable}} placeholders in instruction text.
//
// Rendering is a single pass over the template. Values are inserted as
// literal text and never scanned for placeholders, so user-supplied text
// such as a recipe step cannot expand other variables. A template
// placeholder without a value is an error, so a missing variable never
// reaches the model verbatim. Compose nested fragments by rendering them
// first.
package template

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Renderer handles variable substitution in templates
type Renderer struct{}

// NewRenderer creates a new template renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render replaces every {{key}} in templateText with vars[key].
//
// Returns an error naming every template placeholder that has no value.
func (r *Renderer) Render(templateText string, vars map[string]string) (string, error) {
	var missing []string
	result := placeholderPattern.ReplaceAllStringFunc(templateText, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		if value, ok := vars[key]; ok {
			return value
		}
		missing = append(missing, key)
		return m
	})

	if unresolved := distinctSorted(missing); len(unresolved) > 0 {
		return "", fmt.Errorf("unresolved template placeholders: %v", unresolved)
	}
	return result, nil
}

// ValidateRequiredVars checks that all required variables are provided and non-empty.
func (r *Renderer) ValidateRequiredVars(requiredVars []string, vars map[string]string) error {
	var missing []string
	for _, required := range requiredVars {
		if strings.TrimSpace(vars[required]) == "" {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required variables: %v", missing)
	}
	return nil
}

// MergeVars merges variable maps, later maps taking precedence.
func (r *Renderer) MergeVars(varMaps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, vars := range varMaps {
		for k, v := range vars {
			result[k] = v
		}
	}
	return result
}

func distinctSorted(names []string) []string {
	sort.Strings(names)
	return slices.Compact(names)
}
