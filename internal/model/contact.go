// internal/model/contact.go
package model

// Contact holds the profile fields used for template personalization. Fields
// is schemaless on purpose; the renderer substitutes whatever keys exist and
// blanks everything else.
type Contact struct {
	Email  string            `db:"email" json:"email"`
	Fields map[string]string `db:"fields" json:"fields"`
}
