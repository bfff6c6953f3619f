// Package template resolves {{variable}} placeholders in step inputs against
// the run's variable map.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xjanova/postxagent/pkg/models"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.\-\[\]]+)\s*\}\}`)

// NeedsTemplating reports whether input contains placeholder syntax.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, "{{")
}

// Render substitutes every {{name}} placeholder with the named variable's
// string rendering. An unbound placeholder is an error so that a task missing
// required content fails loudly instead of posting literal braces.
func Render(input string, vars models.Variables) (string, error) {
	if !NeedsTemplating(input) {
		return input, nil
	}

	var missing []string

	rendered := placeholderRe.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}"))

		value, ok := vars.Lookup(name)
		if !ok {
			missing = append(missing, name)

			return match
		}

		return value.AsString()
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("unbound template variables: %s", strings.Join(missing, ", "))
	}

	return rendered, nil
}

// Placeholders returns the variable names referenced by input, in order of
// first appearance.
func Placeholders(input string) []string {
	matches := placeholderRe.FindAllStringSubmatch(input, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))

	for _, m := range matches {
		name := m[1]
		if !seen[name] {
			seen[name] = true

			names = append(names, name)
		}
	}

	return names
}
