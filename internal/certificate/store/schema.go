package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"certhub/internal/platform/database"
)

var errNoSchemaFiles = errors.New("no embedded schema files")

//go:embed schema
var schemaFS embed.FS

// EnsureSchema applies the dialect's DDL files in name order. Every statement is
// idempotent, so it runs on each startup and each pool recreation.
func EnsureSchema(ctx context.Context, execer sqlx.ExecerContext, d database.Dialect) error {
	stmts, err := schemaStatements(d)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := execer.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", d.Name, err)
		}
	}
	return nil
}

// SchemaInitializer adapts EnsureSchema to the connection manager's init hook.
func SchemaInitializer(d database.Dialect) database.InitFunc {
	return func(ctx context.Context, db *sqlx.DB) error {
		return EnsureSchema(ctx, db, d)
	}
}

func schemaStatements(d database.Dialect) ([]string, error) {
	files, err := fs.Glob(schemaFS, "schema/"+d.Name+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list %s schema files: %w", d.Name, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w for %s", errNoSchemaFiles, d.Name)
	}
	sort.Strings(files)

	var stmts []string
	for _, name := range files {
		b, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read schema file %q: %w", name, err)
		}
		for _, stmt := range strings.Split(string(b), ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				stmts = append(stmts, stmt)
			}
		}
	}
	return stmts, nil
}
