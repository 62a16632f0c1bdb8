// Package store persists sitesafe records in SQLite. Each record is kept as
// a JSON payload keyed by id so that new record fields need no migration.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/elite6108/sitesafe/internal/domain"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

const recordTableSchema = `CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

var recordTables = []string{
	"incident_reports",
	"risk_assessments",
	"sign_offs",
	"dse_assessments",
	"projects",
	"customers",
	"incident_categories",
	"todos",
	"staff",
	"leave_requests",
	"stored_files",
	"toolbox_talks",
}

const extraSchema = `
CREATE TABLE IF NOT EXISTS company_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	payload TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS sequences (
	name TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_incident_categories_name ON incident_categories (lower(json_extract(payload, '$.name')));
CREATE UNIQUE INDEX IF NOT EXISTS idx_stored_files_object ON stored_files (json_extract(payload, '$.bucket'), json_extract(payload, '$.name'));
CREATE INDEX IF NOT EXISTS idx_leave_requests_staff ON leave_requests (json_extract(payload, '$.staff_id'));
`

type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time

	Incidents       *Collection[domain.IncidentReport]
	RiskAssessments *Collection[domain.RiskAssessment]
	SignOffs        *Collection[domain.SignOff]
	DSEAssessments  *Collection[domain.DSEAssessment]
	Projects        *Collection[domain.Project]
	Customers       *Collection[domain.Customer]
	Categories      *Collection[domain.IncidentCategory]
	ToDos           *Collection[domain.ToDo]
	Staff           *Collection[domain.StaffMember]
	Leave           *Collection[domain.LeaveRequest]
	Files           *Collection[domain.StoredFile]
	ToolboxTalks    *Collection[domain.ToolboxTalk]
}

// Open creates the database file if needed and applies the schema.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db, logger: logger.Named("store"), now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.bind()
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	var schema strings.Builder
	for _, table := range recordTables {
		fmt.Fprintf(&schema, recordTableSchema+"\n", table)
	}
	schema.WriteString(extraSchema)
	if _, err := s.db.ExecContext(ctx, schema.String()); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) bind() {
	s.Incidents = newCollection(s, "incident_reports", "IR", binding[domain.IncidentReport]{
		id:     func(r *domain.IncidentReport) *string { return &r.ID },
		number: func(r *domain.IncidentReport) *string { return &r.ReportNumber },
		stamps: func(r *domain.IncidentReport) (*time.Time, *time.Time) { return &r.CreatedAt, &r.UpdatedAt },
	})
	s.RiskAssessments = newCollection(s, "risk_assessments", "RA", binding[domain.RiskAssessment]{
		id:     func(r *domain.RiskAssessment) *string { return &r.ID },
		number: func(r *domain.RiskAssessment) *string { return &r.RANumber },
		stamps: func(r *domain.RiskAssessment) (*time.Time, *time.Time) { return &r.CreatedAt, &r.UpdatedAt },
	})
	s.SignOffs = newCollection(s, "sign_offs", "SO", binding[domain.SignOff]{
		id:     func(r *domain.SignOff) *string { return &r.ID },
		number: func(r *domain.SignOff) *string { return &r.SignOffNumber },
		stamps: func(r *domain.SignOff) (*time.Time, *time.Time) { return &r.CreatedAt, &r.UpdatedAt },
	})
	s.DSEAssessments = newCollection(s, "dse_assessments", "DSE", binding[domain.DSEAssessment]{
		id:     func(r *domain.DSEAssessment) *string { return &r.ID },
		number: func(r *domain.DSEAssessment) *string { return &r.AssessmentNumber },
		stamps: func(r *domain.DSEAssessment) (*time.Time, *time.Time) { return &r.CreatedAt, &r.UpdatedAt },
	})
	s.Projects = newCollection(s, "projects", "", binding[domain.Project]{
		id:     func(r *domain.Project) *string { return &r.ID },
		stamps: func(r *domain.Project) (*time.Time, *time.Time) { return &r.CreatedAt, &r.UpdatedAt },
	})
	s.Customers = newCollection(s, "customers", "", binding[domain.Customer]{
		id:     func(r *domain.Customer) *string { return &r.ID },
		stamps: func(r *domain.Customer) (*time.Time, *time.Time) { return &r.CreatedAt, &r.UpdatedAt },
	})
	s.Categories = newCollection(s, "incident_categories", "", binding[domain.IncidentCategory]{
		id:     func(r *domain.IncidentCategory) *string { return &r.ID },
		stamps: func(r *domain.IncidentCategory) (*time.Time, *time.Time) { return &r.CreatedAt, nil },
	})
	s.ToDos = newCollection(s, "todos", "", binding[domain.ToDo]{
		id:     func(r *domain.ToDo) *string { return &r.ID },
		stamps: func(r *domain.ToDo) (*time.Time, *time.Time) { return &r.CreatedAt, &r.UpdatedAt },
	})
	s.Staff = newCollection(s, "staff", "", binding[domain.StaffMember]{
		id:     func(r *domain.StaffMember) *string { return &r.ID },
		stamps: func(r *domain.StaffMember) (*time.Time, *time.Time) { return &r.CreatedAt, nil },
	})
	s.Leave = newCollection(s, "leave_requests", "", binding[domain.LeaveRequest]{
		id:     func(r *domain.LeaveRequest) *string { return &r.ID },
		stamps: func(r *domain.LeaveRequest) (*time.Time, *time.Time) { return &r.CreatedAt, nil },
	})
	s.Files = newCollection(s, "stored_files", "", binding[domain.StoredFile]{
		id:     func(r *domain.StoredFile) *string { return &r.ID },
		stamps: func(r *domain.StoredFile) (*time.Time, *time.Time) { return &r.CreatedAt, nil },
	})
	s.ToolboxTalks = newCollection(s, "toolbox_talks", "", binding[domain.ToolboxTalk]{
		id:     func(r *domain.ToolboxTalk) *string { return &r.ID },
		stamps: func(r *domain.ToolboxTalk) (*time.Time, *time.Time) { return &r.CreatedAt, nil },
	})
}

func withRetry(fn func() error) error {
	const maxAttempts = 3
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		lower := strings.ToLower(err.Error())
		if !strings.Contains(lower, "database is locked") && !strings.Contains(lower, "sqlite_busy") {
			return err
		}
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt) * 125 * time.Millisecond)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
