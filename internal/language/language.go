// Package language resolves the source-language names reported by menu
// structuring into display strings for logs, notifications, and the CLI.
package language

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DisplayName renders a language identifier for human consumption. It
// accepts BCP 47 tags ("vi", "zh-Hant") as well as plain English names the
// structuring model sometimes emits ("Vietnamese"), and falls back to a
// title-cased copy of the input when the value cannot be parsed.
func DisplayName(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "Unknown"
	}
	if tag, err := language.Parse(trimmed); err == nil {
		if name := display.English.Tags().Name(tag); name != "" {
			return name
		}
	}
	return cases.Title(language.English).String(trimmed)
}
