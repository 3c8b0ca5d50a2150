package test

import (
	"os"
	"strings"
	"testing"
)

// The repositories lean on constraints the database enforces rather than
// re-checking them in Go. Pin the ones the error mapping depends on so a
// schema edit cannot silently drop them.
func TestInitSchemaConstraints(t *testing.T) {
	raw, err := os.ReadFile("../migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	schema := string(raw)

	checks := map[string]string{
		"company names are unique":          "name TEXT NOT NULL UNIQUE",
		"product titles are unique":         "title            TEXT NOT NULL UNIQUE",
		"product slugs are unique":          "slug             TEXT NOT NULL UNIQUE",
		"price fits six digits with cents":  "price            NUMERIC(6, 2) NOT NULL",
		"company deletion is restricted":    "REFERENCES companies (id) ON DELETE RESTRICT",
		"activation codes are unique":       "code        TEXT NOT NULL UNIQUE",
		"user emails are unique":            "email           TEXT NOT NULL UNIQUE",
		"unused keys carry a partial index": "WHERE consumed = false",
	}
	for name, want := range checks {
		if !strings.Contains(schema, want) {
			t.Errorf("%s: schema no longer contains %q", name, want)
		}
	}
}
