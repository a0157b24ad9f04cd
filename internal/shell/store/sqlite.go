package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/jobtemplates/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const jobTemplateEntity = "job_template"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", withForeignKeys(dsn))
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// SQLite allows a single writer; one connection also keeps :memory: databases
	// from splitting across the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Job Template Operations
// =============================================================================

// jobTemplateRow represents a job template row in the database.
type jobTemplateRow struct {
	Name      string `db:"name"`
	Template  string `db:"template"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (s *SQLiteStore) GetJobTemplate(ctx context.Context, name string) (*domain.JobTemplate, error) {
	return getJobTemplate(ctx, s.db, name)
}

func (s *SQLiteStore) ListJobTemplates(ctx context.Context) ([]domain.JobTemplate, error) {
	return listJobTemplates(ctx, s.db)
}

func (s *SQLiteStore) PutJobTemplate(ctx context.Context, template *domain.JobTemplate) error {
	return putJobTemplate(ctx, s.db, template)
}

func (s *SQLiteStore) DeleteJobTemplate(ctx context.Context, name string) (bool, error) {
	return deleteJobTemplate(ctx, s.db, name)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) GetJobTemplate(ctx context.Context, name string) (*domain.JobTemplate, error) {
	return getJobTemplate(ctx, s.tx, name)
}

func (s *txSQLiteStore) ListJobTemplates(ctx context.Context) ([]domain.JobTemplate, error) {
	return listJobTemplates(ctx, s.tx)
}

func (s *txSQLiteStore) PutJobTemplate(ctx context.Context, template *domain.JobTemplate) error {
	return putJobTemplate(ctx, s.tx, template)
}

func (s *txSQLiteStore) DeleteJobTemplate(ctx context.Context, name string) (bool, error) {
	return deleteJobTemplate(ctx, s.tx, name)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Ping(ctx context.Context) error {
	return nil
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func getJobTemplate(ctx context.Context, exec executor, name string) (*domain.JobTemplate, error) {
	query := `SELECT name, template, created_at, updated_at FROM job_templates WHERE name = ?`

	var row jobTemplateRow
	err := exec.GetContext(ctx, &row, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetJobTemplate", jobTemplateEntity, name, "job template not found", ErrNotFound)
		}
		return nil, NewStoreError("GetJobTemplate", jobTemplateEntity, name, err.Error(), err)
	}

	return rowToJobTemplate(&row)
}

func listJobTemplates(ctx context.Context, exec executor) ([]domain.JobTemplate, error) {
	query := `SELECT name, template, created_at, updated_at FROM job_templates ORDER BY name ASC`

	var rows []jobTemplateRow
	if err := exec.SelectContext(ctx, &rows, query); err != nil {
		return nil, NewStoreError("ListJobTemplates", jobTemplateEntity, "", err.Error(), err)
	}

	templates := make([]domain.JobTemplate, 0, len(rows))
	for _, row := range rows {
		template, err := rowToJobTemplate(&row)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *template)
	}

	return templates, nil
}

// putJobTemplate is an unconditional insert-or-replace keyed by name.
// created_at is kept from the first insert.
func putJobTemplate(ctx context.Context, exec executor, template *domain.JobTemplate) error {
	if !json.Valid(template.Template) {
		return NewStoreError("PutJobTemplate", jobTemplateEntity, template.Name, "template is not valid JSON", ErrInvalidData)
	}

	query := `
		INSERT INTO job_templates (name, template, created_at, updated_at)
		VALUES (:name, :template, :created_at, :updated_at)
		ON CONFLICT(name) DO UPDATE SET
			template = excluded.template,
			updated_at = excluded.updated_at`

	row := map[string]any{
		"name":       template.Name,
		"template":   string(template.Template),
		"created_at": template.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at": template.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		return NewStoreError("PutJobTemplate", jobTemplateEntity, template.Name, err.Error(), err)
	}

	return nil
}

func deleteJobTemplate(ctx context.Context, exec executor, name string) (bool, error) {
	query := `DELETE FROM job_templates WHERE name = ?`

	result, err := exec.ExecContext(ctx, query, name)
	if err != nil {
		return false, NewStoreError("DeleteJobTemplate", jobTemplateEntity, name, err.Error(), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, NewStoreError("DeleteJobTemplate", jobTemplateEntity, name, err.Error(), err)
	}

	return rowsAffected > 0, nil
}

// =============================================================================
// Row Conversion Functions
// =============================================================================

// rowToJobTemplate converts a database row to a domain.JobTemplate.
func rowToJobTemplate(row *jobTemplateRow) (*domain.JobTemplate, error) {
	createdAt, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, row.UpdatedAt)

	if !json.Valid([]byte(row.Template)) {
		return nil, NewStoreError("rowToJobTemplate", jobTemplateEntity, row.Name, "failed to parse template", ErrInvalidData)
	}

	return &domain.JobTemplate{
		Name:      row.Name,
		Template:  json.RawMessage(row.Template),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
