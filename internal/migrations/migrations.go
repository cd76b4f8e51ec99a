package migrations

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/template"
	"time"

	"github.com/jmoiron/sqlx"
)

// migration ..
type migration struct {
	version string
	done    bool
	up      func(*sqlx.Tx) error
	down    func(*sqlx.Tx) error
}

// registry collects migrations from the init funcs of this package.
var registry = map[string]*migration{}

func register(mg *migration) {
	if _, ok := registry[mg.version]; ok {
		panic(fmt.Sprintf("duplicate migration version %s", mg.version))
	}
	registry[mg.version] = mg
}

// Migrator applies the registered migrations to a Postgres database and
// records them in metadata.schema_migrations.
type Migrator struct {
	db         *sqlx.DB
	versions   []string
	migrations map[string]*migration
}

func NewMigrator(ctx context.Context, db *sqlx.DB) (*Migrator, error) {
	m := &Migrator{db: db, migrations: map[string]*migration{}}
	for _, mg := range registry {
		cp := *mg
		m.addMigration(&cp)
	}

	if _, err := db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS metadata`); err != nil {
		slog.Error("Unable to create metadata schema", slog.Any("error", err))
		return nil, err
	}

	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS metadata.schema_migrations (
		version varchar(255)
	);`)
	if err != nil {
		slog.Error("Unable to create `schema_migrations` table", slog.Any("error", err))
		return nil, err
	}

	var done []string
	if err := db.SelectContext(ctx, &done, "SELECT version FROM metadata.schema_migrations;"); err != nil {
		slog.Error("Unable to fetch completed migrations", slog.Any("error", err))
		return nil, err
	}
	for _, version := range done {
		if mg := m.migrations[version]; mg != nil {
			mg.done = true
		}
	}

	return m, nil
}

// addMigration keeps versions sorted ascending.
func (m *Migrator) addMigration(mg *migration) {
	m.migrations[mg.version] = mg

	index := sort.SearchStrings(m.versions, mg.version)
	m.versions = append(m.versions, "")
	copy(m.versions[index+1:], m.versions[index:])
	m.versions[index] = mg.version
}

type Status struct {
	Version string
	Done    bool
}

func (m *Migrator) Status() []Status {
	out := make([]Status, 0, len(m.versions))
	for _, v := range m.versions {
		out = append(out, Status{Version: v, Done: m.migrations[v].done})
	}
	return out
}

// MigrationStatus logs every known migration with its state.
func (m *Migrator) MigrationStatus() {
	for _, s := range m.Status() {
		state := "pending"
		if s.Done {
			state = "completed"
		}
		slog.Info(fmt.Sprintf("Migration %s... %s", s.Version, state))
	}
}

const migrationTemplate = `package migrations

import (
	"github.com/jmoiron/sqlx"
)

func init() {
	register(&migration{
		version: "{{.Version}}",
		up:      mig_{{.Version}}_{{.Title}}_up,
		down:    mig_{{.Version}}_{{.Title}}_down,
	})
}

func mig_{{.Version}}_{{.Title}}_up(tx *sqlx.Tx) error {
	return nil
}

func mig_{{.Version}}_{{.Title}}_down(tx *sqlx.Tx) error {
	return nil
}
`

// CreateMigration writes an empty migration named <version>_<title>.go into dir.
func CreateMigration(dir, title string, now time.Time) (string, error) {
	var out bytes.Buffer

	version := now.UTC().Format("20060102150405")
	in := struct {
		Version string
		Title   string
	}{
		Version: version,
		Title:   title,
	}

	t := template.Must(template.New("migration").Parse(migrationTemplate))
	if err := t.Execute(&out, in); err != nil {
		slog.Error("Unable to execute migration template", slog.Any("error", err))
		return "", err
	}

	name := filepath.Join(dir, fmt.Sprintf("%s_%s.go", version, title))
	if err := os.WriteFile(name, out.Bytes(), 0o644); err != nil {
		slog.Error("Unable to write the migration file", slog.Any("error", err))
		return "", err
	}

	slog.Info("Generated new migration file...", slog.String("filename", name))
	return name, nil
}

// Up applies up to step pending migrations (all when step <= 0) in one transaction.
func (m *Migrator) Up(ctx context.Context, step int) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		slog.Error("Unable to start transaction to run migrations", slog.Any("error", err))
		return err
	}
	defer tx.Rollback()

	var applied []*migration
	for _, v := range m.versions {
		if step > 0 && len(applied) == step {
			break
		}

		mg := m.migrations[v]
		if mg.done {
			continue
		}

		l := slog.With(slog.String("version", mg.version))
		l.Info("Running up migration...")
		if err := mg.up(tx); err != nil {
			l.Error("Error occurred while running migration", slog.Any("error", err))
			return fmt.Errorf("migration %s: %w", mg.version, err)
		}

		if _, err := tx.Exec("INSERT INTO metadata.schema_migrations VALUES($1);", mg.version); err != nil {
			l.Error("Failed to insert completed migrations to `metadata.schema_migrations`", slog.Any("error", err))
			return err
		}

		applied = append(applied, mg)
		l.Info("Finished up migration...")
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	for _, mg := range applied {
		mg.done = true
	}
	return nil
}

// Down reverts up to step applied migrations (all when step <= 0), newest first.
func (m *Migrator) Down(ctx context.Context, step int) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		slog.Error("Unable to start transaction to run migrations", slog.Any("error", err))
		return err
	}
	defer tx.Rollback()

	var reverted []*migration
	for i := len(m.versions) - 1; i >= 0; i-- {
		if step > 0 && len(reverted) == step {
			break
		}

		mg := m.migrations[m.versions[i]]
		if !mg.done {
			continue
		}

		l := slog.With(slog.String("version", mg.version))
		l.Info("Running down migration...")
		if err := mg.down(tx); err != nil {
			l.Error("Error occurred while running migration", slog.Any("error", err))
			return fmt.Errorf("migration %s: %w", mg.version, err)
		}

		if _, err := tx.Exec("DELETE FROM metadata.schema_migrations WHERE version = $1;", mg.version); err != nil {
			l.Error("Failed to remove reverted migrations from `metadata.schema_migrations`", slog.Any("error", err))
			return err
		}

		reverted = append(reverted, mg)
		l.Info("Finished down migration...")
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	for _, mg := range reverted {
		mg.done = false
	}
	return nil
}
