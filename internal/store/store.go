package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is the run history database.
type Store struct {
	db *sql.DB
}

// pragma is a connection setting together with the value SQLite reports
// back once it took effect.
type pragma struct {
	name, value, reads string
}

var pragmas = []pragma{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// migration upgrades a history database by one user_version step.
type migration struct {
	version int
	about   string
	stmt    string
}

// migrations run in order on top of schema.sql. Version 0 is a database
// created before runs kept an index of failing tests.
var migrations = []migration{
	{
		version: 1,
		about:   "index failing tests by run",
		stmt:    `CREATE INDEX IF NOT EXISTS idx_tests_failing ON tests(run_id) WHERE ok = 0`,
	},
}

func schemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Open opens the history database at path, creating it when missing, and
// brings its schema up to date. Opening the same path repeatedly is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// One connection: per-connection pragmas stay in force and writers never
	// contend with each other for the lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("set %s: %w", p.name, err)
		}
		if err := s.verifyPragma(p.name, p.reads); err != nil {
			return err
		}
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create runs and tests tables: %w", err)
	}
	return s.migrate()
}

// migrate applies every migration newer than the stored user_version. A
// database written by a newer brittle is refused rather than downgraded.
func (s *Store) migrate() error {
	var have int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&have); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if have > schemaVersion() {
		return fmt.Errorf("history schema version %d is newer than supported version %d", have, schemaVersion())
	}
	for _, m := range migrations {
		if m.version <= have {
			continue
		}
		if _, err := s.db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to version %d (%s): %w", m.version, m.about, err)
		}
		// PRAGMA does not take bound parameters.
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return fmt.Errorf("record schema version %d: %w", m.version, err)
		}
	}
	return nil
}

// Close releases the database. It is a no-op on a zero Store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("%s is %q, want %q", name, got, want)
	}
	return nil
}
