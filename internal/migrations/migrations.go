// Package migrations applies the embedded schema at startup.  All DDL is
// written with IF NOT EXISTS so repeated application is a no-op; there is
// no down path.
package migrations

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// Apply runs every statement in schema.sql against db.  Statements are
// separated by semicolons; comment-only fragments are skipped.
func Apply(ctx context.Context, db *sql.DB) error {
	for _, raw := range strings.Split(schemaSQL, ";") {
		stmt := stripComments(raw)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %q...: %w", head(stmt), err)
		}
	}
	return nil
}

func stripComments(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func head(stmt string) string {
	if len(stmt) > 40 {
		return stmt[:40]
	}
	return stmt
}
