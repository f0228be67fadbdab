package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"strings"
)

// Migration names start with one of these verbs, e.g. create_menu_categories.
var migrationVerbs = []string{"create", "alter", "add", "drop", "rename", "backfill", "index"}

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	// stock_adjustments is an append-only ledger; no migration may rewrite rows.
	ledgerRewriteRe = regexp.MustCompile(`(?i)\b(update\s+stock_adjustments|delete\s+from\s+stock_adjustments|truncate\s+(table\s+)?stock_adjustments)\b`)
)

// ValidateDir checks the migrations in dir. DefaultDir validates the embedded set.
func ValidateDir(dir string) error {
	return ValidateFS(sourceFor(dir))
}

// ValidateFS enforces the naming and content rules on every .sql file in fsys:
// YYYYMMDDHHMMSS_<verb>_<subject>.sql, unique versions, goose Up and Down
// sections, and no row rewrites of the stock ledger in an Up section.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version, slug := m[1], m[2]
		if !hasMigrationVerb(slug) {
			return fmt.Errorf("migration %q must start with one of %s", name, strings.Join(migrationVerbs, ", "))
		}
		if prev, ok := seen[version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", version, prev, name)
		}
		seen[version] = name

		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read file %q: %w", name, err)
		}
		if err := validateBody(name, string(b)); err != nil {
			return err
		}
	}

	if len(seen) == 0 {
		return fmt.Errorf("no migrations found")
	}
	return nil
}

func validateBody(name, txt string) error {
	upAt := strings.Index(txt, "-- +goose Up")
	if upAt < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	}
	downAt := strings.Index(txt, "-- +goose Down")
	if downAt < 0 {
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	}
	if downAt < upAt {
		return fmt.Errorf("migration %q has its Down section before Up", name)
	}
	if ledgerRewriteRe.MatchString(txt[upAt:downAt]) {
		return fmt.Errorf("migration %q rewrites stock_adjustments rows; the ledger is append-only", name)
	}
	return nil
}

func hasMigrationVerb(slug string) bool {
	for _, verb := range migrationVerbs {
		if strings.HasPrefix(slug, verb+"_") {
			return true
		}
	}
	return false
}
