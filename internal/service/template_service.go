// internal/service/template_service.go
package service

import "regexp"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate substitutes {{field}} placeholders with contact profile
// values. Unresolved placeholders become empty strings, never an error.
func RenderTemplate(template string, fields map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		return fields[key]
	})
}
