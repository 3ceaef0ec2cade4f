package patient

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	sqlGetPatient = `SELECT id, name, age FROM patients WHERE id = ?`

	sqlGetDepartments = `SELECT name, last_visit, diagnosis, medications
		FROM departments WHERE patient_id = ? ORDER BY name`

	sqlUpsertPatient = `INSERT INTO patients (id, name, age) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, age = excluded.age`

	sqlDeleteDepartments = `DELETE FROM departments WHERE patient_id = ?`

	sqlInsertDepartment = `INSERT INTO departments
		(patient_id, name, last_visit, diagnosis, medications) VALUES (?, ?, ?, ?, ?)`

	sqlCountPatients = `SELECT COUNT(*) FROM patients`
)

// visitDateLayout is how last_visit is stored.
const visitDateLayout = time.DateOnly

// SQLiteRepository stores patients in a SQLite database.
type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies
// pending migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// DSN pragmas apply to every pooled connection.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("patient: opening database %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("patient database ready", slog.String("db_path", path))

	return &SQLiteRepository{db: db, logger: logger}, nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("patient: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("patient: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("patient: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Close releases the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Get loads a patient and all department records.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Patient, error) {
	id = NormalizeID(id)

	p := &Patient{Departments: make(map[string]DepartmentRecord)}

	err := r.db.QueryRowContext(ctx, sqlGetPatient, id).Scan(&p.ID, &p.Name, &p.Age)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("patient: loading %s: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, sqlGetDepartments, id)
	if err != nil {
		return nil, fmt.Errorf("patient: loading departments of %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, visit, diagnosis, meds string
			rec                          DepartmentRecord
		)

		if err := rows.Scan(&name, &visit, &diagnosis, &meds); err != nil {
			return nil, fmt.Errorf("patient: scanning department row: %w", err)
		}

		rec.Diagnosis = diagnosis

		rec.LastVisit, err = time.Parse(visitDateLayout, visit)
		if err != nil {
			return nil, fmt.Errorf("patient: %s/%s: invalid last_visit %q: %w", id, name, visit, err)
		}

		if err := json.Unmarshal([]byte(meds), &rec.Medications); err != nil {
			return nil, fmt.Errorf("patient: %s/%s: invalid medications: %w", id, name, err)
		}

		p.Departments[name] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patient: iterating departments: %w", err)
	}

	return p, nil
}

// Put inserts or replaces a patient and its department records in one
// transaction.
func (r *SQLiteRepository) Put(ctx context.Context, p Patient) (err error) {
	id := NormalizeID(p.ID)
	if id == "" {
		return errors.New("patient: empty ID")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("patient: beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Warn("rollback failed", slog.String("error", rbErr.Error()))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, sqlUpsertPatient, id, p.Name, p.Age); err != nil {
		return fmt.Errorf("patient: writing %s: %w", id, err)
	}

	if _, err = tx.ExecContext(ctx, sqlDeleteDepartments, id); err != nil {
		return fmt.Errorf("patient: clearing departments of %s: %w", id, err)
	}

	for name, rec := range p.Departments {
		meds := rec.Medications
		if meds == nil {
			meds = []string{}
		}

		var encoded []byte

		encoded, err = json.Marshal(meds)
		if err != nil {
			return fmt.Errorf("patient: encoding medications: %w", err)
		}

		_, err = tx.ExecContext(ctx, sqlInsertDepartment,
			id, name, rec.LastVisit.UTC().Format(visitDateLayout), rec.Diagnosis, string(encoded))
		if err != nil {
			return fmt.Errorf("patient: writing department %s/%s: %w", id, name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("patient: committing %s: %w", id, err)
	}

	return nil
}

// Seed writes patients only when the database is empty. Reports whether
// anything was written.
func (r *SQLiteRepository) Seed(ctx context.Context, patients []Patient) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, sqlCountPatients).Scan(&n); err != nil {
		return false, fmt.Errorf("patient: counting patients: %w", err)
	}

	if n > 0 {
		return false, nil
	}

	for _, p := range patients {
		if err := r.Put(ctx, p); err != nil {
			return false, err
		}
	}

	r.logger.Info("seeded patient database", slog.Int("patients", len(patients)))

	return true, nil
}
