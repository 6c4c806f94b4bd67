/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements leave.TxStore plus the configuration records the API layer
  needs (employees, offices, leave types, workflow configs, holidays) and
  the durable audit log. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

CONCURRENCY:
  Balance rows carry a version column. UpdateBalance is a single guarded
  UPDATE (WHERE version = ?); a lost race affects zero rows and surfaces
  as leave.ErrConcurrencyConflict for the ledger's bounded retry loop.
  Write transactions are serialized by a mutex on top of SQLite's own
  single-writer model.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block,
  one writer at a time, better crash recovery.

APPEND-ONLY TABLES:
  balance_mutations and audit_entries are never updated or deleted.
  leave_requests are never deleted either - cancellation is a status.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := leave.NewEngine(store, policy, events, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/leave"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same query code
// serves the base store and the transactional view.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	core
	db *sql.DB
	mu sync.Mutex // serializes write transactions
}

// core holds the query methods shared between Store and its tx view.
type core struct {
	q dbtx
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{core: core{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS offices (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		country TEXT,
		working_week TEXT NOT NULL,
		carryover_cap TEXT NOT NULL DEFAULT '0',
		default_allowance TEXT NOT NULL DEFAULT '25',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		office_id TEXT NOT NULL REFERENCES offices(id),
		hire_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_types (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		labels_json TEXT NOT NULL DEFAULT '{}',
		color TEXT,
		office_id TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		deducts INTEGER NOT NULL DEFAULT 0,
		balance_type TEXT NOT NULL DEFAULT '',
		balance_exempt INTEGER NOT NULL DEFAULT 0,
		requires_attachment INTEGER NOT NULL DEFAULT 0,
		attachment_from_days TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workflow_configs (
		id TEXT PRIMARY KEY,
		office_id TEXT NOT NULL,
		mode TEXT NOT NULL,
		steps_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_workflow_configs_office
		ON workflow_configs(office_id);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		office_id TEXT,
		date TEXT NOT NULL,
		name TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_holidays_office_date
		ON holidays(office_id, date);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		leave_type_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_half TEXT NOT NULL,
		end_half TEXT NOT NULL,
		total_days TEXT NOT NULL,
		status TEXT NOT NULL,
		mode TEXT NOT NULL,
		attempt INTEGER NOT NULL DEFAULT 1,
		reason TEXT,
		exceptional_reason TEXT,
		attachment_ref TEXT,
		balance_year INTEGER NOT NULL DEFAULT 0,
		balance_type TEXT NOT NULL DEFAULT '',
		reserved INTEGER NOT NULL DEFAULT 0,
		reminded_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_requests_employee_dates
		ON leave_requests(employee_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);

	CREATE TABLE IF NOT EXISTS approval_steps (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES leave_requests(id),
		attempt INTEGER NOT NULL,
		step_order INTEGER NOT NULL,
		step_type TEXT NOT NULL,
		approver_id TEXT NOT NULL,
		action TEXT,
		comment TEXT,
		decided_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_steps_request_attempt
		ON approval_steps(request_id, attempt, step_order);
	CREATE INDEX IF NOT EXISTS idx_steps_approver
		ON approval_steps(approver_id);

	-- Versioned balance rows: the version column backs the ledger's
	-- compare-and-swap update.
	CREATE TABLE IF NOT EXISTS leave_balances (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		balance_type TEXT NOT NULL,
		total TEXT NOT NULL,
		carried_over TEXT NOT NULL,
		used TEXT NOT NULL,
		pending TEXT NOT NULL,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, year, balance_type)
	);

	-- Append-only mutation trail. No UPDATE, no DELETE. Ever.
	CREATE TABLE IF NOT EXISTS balance_mutations (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		balance_type TEXT NOT NULL,
		kind TEXT NOT NULL,
		delta TEXT NOT NULL,
		reason TEXT,
		request_id TEXT,
		actor_id TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mutations_key
		ON balance_mutations(employee_id, year, balance_type, created_at);

	-- Durable audit log, append-only.
	CREATE TABLE IF NOT EXISTS audit_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		actor_id TEXT,
		payload_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes fn within one database transaction. All effects commit
// together or none do.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&core{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// REQUESTS (leave.RequestStore)
// =============================================================================

func (c *core) SaveRequest(ctx context.Context, r *leave.LeaveRequest) error {
	query := `
		INSERT INTO leave_requests
		(id, employee_id, leave_type_id, start_date, end_date, start_half, end_half,
		 total_days, status, mode, attempt, reason, exceptional_reason, attachment_ref,
		 balance_year, balance_type, reserved, reminded_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := c.q.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.LeaveTypeID,
		r.StartDate.String(), r.EndDate.String(), r.StartHalf, r.EndHalf,
		r.TotalDays.String(), r.Status, r.Mode, r.Attempt,
		r.Reason, r.ExceptionalReason, r.AttachmentRef,
		r.BalanceYear, r.BalanceType, boolToInt(r.Reserved),
		nullTime(r.RemindedAt),
		r.CreatedAt.UTC().Format(timeLayout), r.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func (c *core) UpdateRequest(ctx context.Context, r *leave.LeaveRequest) error {
	query := `
		UPDATE leave_requests SET
			start_date = ?, end_date = ?, start_half = ?, end_half = ?,
			total_days = ?, status = ?, mode = ?, attempt = ?, reason = ?,
			attachment_ref = ?, balance_year = ?, balance_type = ?,
			reserved = ?, reminded_at = ?, updated_at = ?
		WHERE id = ?
	`
	res, err := c.q.ExecContext(ctx, query,
		r.StartDate.String(), r.EndDate.String(), r.StartHalf, r.EndHalf,
		r.TotalDays.String(), r.Status, r.Mode, r.Attempt, r.Reason,
		r.AttachmentRef, r.BalanceYear, r.BalanceType,
		boolToInt(r.Reserved), nullTime(r.RemindedAt),
		r.UpdatedAt.UTC().Format(timeLayout), r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return leave.ErrNotFound
	}
	return nil
}

const requestColumns = `
	id, employee_id, leave_type_id, start_date, end_date, start_half, end_half,
	total_days, status, mode, attempt, reason, exceptional_reason, attachment_ref,
	balance_year, balance_type, reserved, reminded_at, created_at, updated_at
`

func (c *core) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	requests, err := c.queryRequests(ctx,
		"SELECT"+requestColumns+"FROM leave_requests WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, leave.ErrNotFound
	}
	return requests[0], nil
}

func (c *core) RequestsByEmployee(ctx context.Context, id leave.EmployeeID) ([]*leave.LeaveRequest, error) {
	return c.queryRequests(ctx,
		"SELECT"+requestColumns+"FROM leave_requests WHERE employee_id = ? ORDER BY created_at DESC", id)
}

func (c *core) FindOverlapping(ctx context.Context, id leave.EmployeeID, start, end leave.Date) ([]*leave.LeaveRequest, error) {
	query := "SELECT" + requestColumns + `
		FROM leave_requests
		WHERE employee_id = ?
		  AND status NOT IN (?, ?)
		  AND start_date <= ? AND end_date >= ?
	`
	return c.queryRequests(ctx, query, id,
		leave.StatusCancelled, leave.StatusRefused,
		end.String(), start.String())
}

func (c *core) PendingRequests(ctx context.Context) ([]*leave.LeaveRequest, error) {
	return c.queryRequests(ctx,
		"SELECT"+requestColumns+"FROM leave_requests WHERE status IN (?, ?) ORDER BY created_at ASC",
		leave.StatusPendingManager, leave.StatusPendingHR)
}

// ClaimForReminder stamps eligible requests in the same statement that
// selects them, so overlapping scans cannot double-claim.
func (c *core) ClaimForReminder(ctx context.Context, cutoff, now time.Time) ([]*leave.LeaveRequest, error) {
	cutoffStr := cutoff.UTC().Format(timeLayout)
	query := `
		UPDATE leave_requests SET reminded_at = ?
		WHERE status IN (?, ?)
		  AND (reminded_at IS NULL OR reminded_at < ?)
		  AND created_at <= ?
		RETURNING` + requestColumns
	rows, err := c.q.QueryContext(ctx, query,
		now.UTC().Format(timeLayout),
		leave.StatusPendingManager, leave.StatusPendingHR,
		cutoffStr, cutoffStr)
	if err != nil {
		return nil, fmt.Errorf("failed to claim reminders: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (c *core) queryRequests(ctx context.Context, query string, args ...any) ([]*leave.LeaveRequest, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func scanRequests(rows *sql.Rows) ([]*leave.LeaveRequest, error) {
	var requests []*leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func scanRequest(rows *sql.Rows) (*leave.LeaveRequest, error) {
	var (
		r                 leave.LeaveRequest
		startDate         string
		endDate           string
		totalDays         string
		reason            sql.NullString
		exceptionalReason sql.NullString
		attachmentRef     sql.NullString
		reserved          int
		remindedAt        sql.NullString
		createdAt         string
		updatedAt         string
	)
	err := rows.Scan(
		&r.ID, &r.EmployeeID, &r.LeaveTypeID, &startDate, &endDate,
		&r.StartHalf, &r.EndHalf, &totalDays, &r.Status, &r.Mode, &r.Attempt,
		&reason, &exceptionalReason, &attachmentRef,
		&r.BalanceYear, &r.BalanceType, &reserved, &remindedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}

	if r.StartDate, err = leave.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("request %s: bad start_date %q: %w", r.ID, startDate, err)
	}
	if r.EndDate, err = leave.ParseDate(endDate); err != nil {
		return nil, fmt.Errorf("request %s: bad end_date %q: %w", r.ID, endDate, err)
	}
	r.TotalDays = mustDecimal(totalDays)
	r.Reason = reason.String
	r.ExceptionalReason = exceptionalReason.String
	r.AttachmentRef = attachmentRef.String
	r.Reserved = reserved != 0
	if remindedAt.Valid {
		t, err := time.Parse(timeLayout, remindedAt.String)
		if err != nil {
			return nil, fmt.Errorf("request %s: bad reminded_at %q: %w", r.ID, remindedAt.String, err)
		}
		r.RemindedAt = &t
	}
	if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("request %s: bad created_at %q: %w", r.ID, createdAt, err)
	}
	if r.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("request %s: bad updated_at %q: %w", r.ID, updatedAt, err)
	}
	return &r, nil
}

// =============================================================================
// STEPS (leave.StepStore)
// =============================================================================

func (c *core) SaveSteps(ctx context.Context, steps []*leave.ApprovalStep) error {
	query := `
		INSERT INTO approval_steps
		(id, request_id, attempt, step_order, step_type, approver_id, action, comment, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, st := range steps {
		_, err := c.q.ExecContext(ctx, query,
			st.ID, st.RequestID, st.Attempt, st.StepOrder, st.StepType,
			st.Approver, nullString(string(st.Action)), st.Comment, nullTime(st.DecidedAt))
		if err != nil {
			return fmt.Errorf("failed to save step: %w", err)
		}
	}
	return nil
}

func (c *core) UpdateStep(ctx context.Context, st *leave.ApprovalStep) error {
	// Decisions are write-once: the guard refuses to touch a decided row.
	query := `
		UPDATE approval_steps SET action = ?, comment = ?, decided_at = ?
		WHERE id = ? AND action IS NULL
	`
	res, err := c.q.ExecContext(ctx, query,
		nullString(string(st.Action)), st.Comment, nullTime(st.DecidedAt), st.ID)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return leave.ErrAlreadyDecided
	}
	return nil
}

const stepColumns = `
	id, request_id, attempt, step_order, step_type, approver_id, action, comment, decided_at
`

func (c *core) GetStep(ctx context.Context, id leave.StepID) (*leave.ApprovalStep, error) {
	steps, err := c.querySteps(ctx,
		"SELECT"+stepColumns+"FROM approval_steps WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, leave.ErrNotFound
	}
	return steps[0], nil
}

func (c *core) StepsByRequest(ctx context.Context, id leave.RequestID, attempt int) ([]*leave.ApprovalStep, error) {
	return c.querySteps(ctx,
		"SELECT"+stepColumns+"FROM approval_steps WHERE request_id = ? AND attempt = ? ORDER BY step_order ASC",
		id, attempt)
}

func (c *core) querySteps(ctx context.Context, query string, args ...any) ([]*leave.ApprovalStep, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []*leave.ApprovalStep
	for rows.Next() {
		var (
			st        leave.ApprovalStep
			action    sql.NullString
			comment   sql.NullString
			decidedAt sql.NullString
		)
		if err := rows.Scan(&st.ID, &st.RequestID, &st.Attempt, &st.StepOrder,
			&st.StepType, &st.Approver, &action, &comment, &decidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		st.Action = leave.StepAction(action.String)
		st.Comment = comment.String
		if decidedAt.Valid {
			t, _ := time.Parse(timeLayout, decidedAt.String)
			st.DecidedAt = &t
		}
		steps = append(steps, &st)
	}
	return steps, rows.Err()
}

// =============================================================================
// BALANCES (leave.BalanceStore)
// =============================================================================

func (c *core) GetBalance(ctx context.Context, key leave.BalanceKey) (*leave.Balance, error) {
	row := c.q.QueryRowContext(ctx, `
		SELECT total, carried_over, used, pending, version, updated_at
		FROM leave_balances
		WHERE employee_id = ? AND year = ? AND balance_type = ?
	`, key.EmployeeID, key.Year, key.BalanceType)

	var (
		total, carried, used, pending string
		version                       int64
		updatedAt                     string
	)
	if err := row.Scan(&total, &carried, &used, &pending, &version, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, leave.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}

	b := leave.Balance{
		Key:         key,
		Total:       mustDecimal(total),
		CarriedOver: mustDecimal(carried),
		Used:        mustDecimal(used),
		Pending:     mustDecimal(pending),
		Version:     version,
	}
	b.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &b, nil
}

func (c *core) CreateBalance(ctx context.Context, b leave.Balance) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_balances
		(employee_id, year, balance_type, total, carried_over, used, pending, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)
	`, b.Key.EmployeeID, b.Key.Year, b.Key.BalanceType,
		b.Total.String(), b.CarriedOver.String(), b.Used.String(), b.Pending.String(),
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		if isUniqueConstraintError(err) {
			return leave.ErrBalanceExists
		}
		return fmt.Errorf("failed to create balance: %w", err)
	}
	return nil
}

// UpdateBalance is a single guarded UPDATE keyed on the version the caller
// read. Zero affected rows means either a lost race or a missing key.
func (c *core) UpdateBalance(ctx context.Context, b leave.Balance, expectedVersion int64) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE leave_balances
		SET total = ?, carried_over = ?, used = ?, pending = ?,
		    version = version + 1, updated_at = ?
		WHERE employee_id = ? AND year = ? AND balance_type = ? AND version = ?
	`, b.Total.String(), b.CarriedOver.String(), b.Used.String(), b.Pending.String(),
		b.UpdatedAt.UTC().Format(timeLayout),
		b.Key.EmployeeID, b.Key.Year, b.Key.BalanceType, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, gerr := c.GetBalance(ctx, b.Key); gerr != nil {
			return gerr
		}
		return leave.ErrConcurrencyConflict
	}
	return nil
}

func (c *core) AppendMutation(ctx context.Context, m leave.BalanceMutation) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO balance_mutations
		(id, employee_id, year, balance_type, kind, delta, reason, request_id, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Key.EmployeeID, m.Key.Year, m.Key.BalanceType, m.Kind,
		m.Delta.String(), m.Reason, m.RequestID, m.ActorID,
		m.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to append mutation: %w", err)
	}
	return nil
}

func (c *core) BalancesByEmployee(ctx context.Context, id leave.EmployeeID, year int) ([]*leave.Balance, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT balance_type, total, carried_over, used, pending, version, updated_at
		FROM leave_balances
		WHERE employee_id = ? AND year = ?
		ORDER BY balance_type ASC
	`, id, year)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var balances []*leave.Balance
	for rows.Next() {
		var (
			balanceType                   string
			total, carried, used, pending string
			version                       int64
			updatedAt                     string
		)
		if err := rows.Scan(&balanceType, &total, &carried, &used, &pending, &version, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		b := leave.Balance{
			Key:         leave.BalanceKey{EmployeeID: id, Year: year, BalanceType: balanceType},
			Total:       mustDecimal(total),
			CarriedOver: mustDecimal(carried),
			Used:        mustDecimal(used),
			Pending:     mustDecimal(pending),
			Version:     version,
		}
		b.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
		balances = append(balances, &b)
	}
	return balances, rows.Err()
}

func (c *core) Mutations(ctx context.Context, key leave.BalanceKey) ([]leave.BalanceMutation, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, kind, delta, reason, request_id, actor_id, created_at
		FROM balance_mutations
		WHERE employee_id = ? AND year = ? AND balance_type = ?
		ORDER BY created_at ASC
	`, key.EmployeeID, key.Year, key.BalanceType)
	if err != nil {
		return nil, fmt.Errorf("failed to query mutations: %w", err)
	}
	defer rows.Close()

	var mutations []leave.BalanceMutation
	for rows.Next() {
		var (
			m         leave.BalanceMutation
			delta     string
			reason    sql.NullString
			requestID sql.NullString
			actorID   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&m.ID, &m.Kind, &delta, &reason, &requestID, &actorID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan mutation: %w", err)
		}
		m.Key = key
		m.Delta = mustDecimal(delta)
		m.Reason = reason.String
		m.RequestID = leave.RequestID(requestID.String)
		m.ActorID = leave.ActorID(actorID.String)
		m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		mutations = append(mutations, m)
	}
	return mutations, rows.Err()
}

// =============================================================================
// EMPLOYEES AND OFFICES
// =============================================================================

// Employee is a stored employee record.
type Employee struct {
	ID        string
	Name      string
	Email     string
	OfficeID  string
	HireDate  time.Time
	CreatedAt time.Time
}

// Office carries the calendar facts the working-day calculator consumes.
type Office struct {
	ID               string
	Name             string
	Country          string
	WorkingWeek      []time.Weekday
	CarryoverCap     decimal.Decimal
	DefaultAllowance decimal.Decimal
	CreatedAt        time.Time
}

func (s *Store) SaveEmployee(ctx context.Context, e Employee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, office_id, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email,
			office_id = excluded.office_id
	`, e.ID, e.Name, e.Email, e.OfficeID,
		e.HireDate.Format(dateLayout), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, office_id, hire_date, created_at
		FROM employees WHERE id = ?
	`, id)

	var (
		e        Employee
		hireDate string
		created  string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Email, &e.OfficeID, &hireDate, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, leave.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	e.HireDate, _ = time.Parse(dateLayout, hireDate)
	e.CreatedAt, _ = time.Parse(timeLayout, created)
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, office_id, hire_date, created_at
		FROM employees ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var (
			e        Employee
			hireDate string
			created  string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.OfficeID, &hireDate, &created); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.HireDate, _ = time.Parse(dateLayout, hireDate)
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *Store) SaveOffice(ctx context.Context, o Office) error {
	week := make([]int, len(o.WorkingWeek))
	for i, d := range o.WorkingWeek {
		week[i] = int(d)
	}
	weekJSON, _ := json.Marshal(week)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offices (id, name, country, working_week, carryover_cap, default_allowance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, country = excluded.country,
			working_week = excluded.working_week, carryover_cap = excluded.carryover_cap,
			default_allowance = excluded.default_allowance
	`, o.ID, o.Name, o.Country, string(weekJSON),
		o.CarryoverCap.String(), o.DefaultAllowance.String(),
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save office: %w", err)
	}
	return nil
}

func (s *Store) GetOffice(ctx context.Context, id string) (*Office, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, country, working_week, carryover_cap, default_allowance, created_at
		FROM offices WHERE id = ?
	`, id)

	var (
		o         Office
		weekJSON  string
		cap       string
		allowance string
		created   string
	)
	if err := row.Scan(&o.ID, &o.Name, &o.Country, &weekJSON, &cap, &allowance, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, leave.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get office: %w", err)
	}

	var week []int
	json.Unmarshal([]byte(weekJSON), &week)
	for _, d := range week {
		o.WorkingWeek = append(o.WorkingWeek, time.Weekday(d))
	}
	o.CarryoverCap = mustDecimal(cap)
	o.DefaultAllowance = mustDecimal(allowance)
	o.CreatedAt, _ = time.Parse(timeLayout, created)
	return &o, nil
}

// WorkingWeekFor returns the office's working week as the calculator wants it.
func (s *Store) WorkingWeekFor(ctx context.Context, officeID string) (leave.WorkingWeek, error) {
	office, err := s.GetOffice(ctx, officeID)
	if err != nil {
		return nil, err
	}
	if len(office.WorkingWeek) == 0 {
		return leave.DefaultWorkingWeek(), nil
	}
	return leave.NewWorkingWeek(office.WorkingWeek...), nil
}

// =============================================================================
// LEAVE TYPES (implements leave.LeaveTypeResolver)
// =============================================================================

func (s *Store) SaveLeaveType(ctx context.Context, lt leave.LeaveTypeConfig) error {
	labelsJSON, _ := json.Marshal(lt.Labels)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_types
		(id, code, labels_json, color, office_id, active, deducts, balance_type,
		 balance_exempt, requires_attachment, attachment_from_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET code = excluded.code, labels_json = excluded.labels_json,
			color = excluded.color, active = excluded.active, deducts = excluded.deducts,
			balance_type = excluded.balance_type, balance_exempt = excluded.balance_exempt,
			requires_attachment = excluded.requires_attachment,
			attachment_from_days = excluded.attachment_from_days
	`, lt.ID, lt.Code, string(labelsJSON), lt.Color, lt.Office,
		boolToInt(lt.Active), boolToInt(lt.DeductsFromBalance), lt.BalanceType,
		boolToInt(lt.BalanceExempt), boolToInt(lt.RequiresAttachment),
		lt.AttachmentFromDays.String(), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save leave type: %w", err)
	}
	return nil
}

func (s *Store) LeaveType(ctx context.Context, id leave.LeaveTypeID) (*leave.LeaveTypeConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, code, labels_json, color, office_id, active, deducts, balance_type,
		       balance_exempt, requires_attachment, attachment_from_days
		FROM leave_types WHERE id = ?
	`, id)
	return scanLeaveType(row)
}

func (s *Store) ListLeaveTypes(ctx context.Context) ([]*leave.LeaveTypeConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, labels_json, color, office_id, active, deducts, balance_type,
		       balance_exempt, requires_attachment, attachment_from_days
		FROM leave_types ORDER BY code ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list leave types: %w", err)
	}
	defer rows.Close()

	var types []*leave.LeaveTypeConfig
	for rows.Next() {
		lt, err := scanLeaveType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, lt)
	}
	return types, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLeaveType(row rowScanner) (*leave.LeaveTypeConfig, error) {
	var (
		lt           leave.LeaveTypeConfig
		labelsJSON   string
		color        sql.NullString
		office       sql.NullString
		active       int
		deducts      int
		exempt       int
		requiresAtt  int
		attThreshold string
	)
	err := row.Scan(&lt.ID, &lt.Code, &labelsJSON, &color, &office, &active,
		&deducts, &lt.BalanceType, &exempt, &requiresAtt, &attThreshold)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, leave.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan leave type: %w", err)
	}

	json.Unmarshal([]byte(labelsJSON), &lt.Labels)
	lt.Color = color.String
	lt.Office = leave.OfficeID(office.String)
	lt.Active = active != 0
	lt.DeductsFromBalance = deducts != 0
	lt.BalanceExempt = exempt != 0
	lt.RequiresAttachment = requiresAtt != 0
	lt.AttachmentFromDays = mustDecimal(attThreshold)
	return &lt, nil
}

// =============================================================================
// WORKFLOW CONFIGS
// =============================================================================

func (s *Store) SaveWorkflowConfig(ctx context.Context, wf leave.WorkflowConfig) error {
	stepsJSON, _ := json.Marshal(wf.Steps)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_configs (id, office_id, mode, steps_json, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET office_id = excluded.office_id,
			mode = excluded.mode, steps_json = excluded.steps_json
	`, wf.ID, wf.Office, wf.Mode, string(stepsJSON), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save workflow config: %w", err)
	}
	return nil
}

// WorkflowConfigForOffice returns the most recent workflow configuration
// for the office.
func (s *Store) WorkflowConfigForOffice(ctx context.Context, officeID string) (*leave.WorkflowConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, office_id, mode, steps_json
		FROM workflow_configs WHERE office_id = ?
		ORDER BY created_at DESC LIMIT 1
	`, officeID)

	var (
		wf        leave.WorkflowConfig
		stepsJSON string
	)
	if err := row.Scan(&wf.ID, &wf.Office, &wf.Mode, &stepsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, leave.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get workflow config: %w", err)
	}
	if err := json.Unmarshal([]byte(stepsJSON), &wf.Steps); err != nil {
		return nil, fmt.Errorf("failed to parse workflow steps: %w", err)
	}
	return &wf, nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) SaveHoliday(ctx context.Context, h leave.Holiday) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, office_id, date, name) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET office_id = excluded.office_id,
			date = excluded.date, name = excluded.name
	`, h.ID, h.Office, h.Date.String(), h.Name)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return leave.ErrNotFound
	}
	return nil
}

// Holidays returns the office's holidays, global ones included.
func (s *Store) Holidays(ctx context.Context, officeID string) ([]leave.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, office_id, date, name FROM holidays
		WHERE office_id = ? OR office_id = '' OR office_id IS NULL
		ORDER BY date ASC
	`, officeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []leave.Holiday
	for rows.Next() {
		var (
			h      leave.Holiday
			office sql.NullString
			date   string
		)
		if err := rows.Scan(&h.ID, &office, &date, &h.Name); err != nil {
			return nil, fmt.Errorf("failed to scan holiday: %w", err)
		}
		h.Office = leave.OfficeID(office.String)
		h.Date, _ = leave.ParseDate(date)
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// HolidaySetFor builds the calculator's holiday lookup for an office.
func (s *Store) HolidaySetFor(ctx context.Context, officeID string) (leave.HolidaySet, error) {
	holidays, err := s.Holidays(ctx, officeID)
	if err != nil {
		return nil, err
	}
	return leave.NewHolidaySet(holidays...), nil
}

// =============================================================================
// AUDIT LOG (implements leave.AuditRecorder)
// =============================================================================

func (s *Store) RecordTransition(ctx context.Context, ev leave.WorkflowTransitionEvent) error {
	payload, _ := json.Marshal(map[string]any{
		"request_id": ev.RequestID,
		"employee":   ev.EmployeeID,
		"old_status": ev.OldStatus,
		"new_status": ev.NewStatus,
		"comment":    ev.Comment,
		"start_date": ev.StartDate.String(),
		"end_date":   ev.EndDate.String(),
	})
	return s.appendAudit(ctx, "workflow_transition", string(ev.ActorID), string(payload))
}

func (s *Store) RecordBalanceMutation(ctx context.Context, ev leave.BalanceMutationEvent) error {
	payload, _ := json.Marshal(map[string]any{
		"employee":     ev.EmployeeID,
		"year":         ev.Year,
		"balance_type": ev.BalanceType,
		"kind":         ev.Kind,
		"delta":        ev.Delta.String(),
		"reason":       ev.Reason,
		"request_id":   ev.RequestID,
	})
	return s.appendAudit(ctx, "balance_mutation", string(ev.ActorID), string(payload))
}

func (s *Store) appendAudit(ctx context.Context, kind, actor, payload string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (kind, actor_id, payload_json, created_at)
		VALUES (?, ?, ?, ?)
	`, kind, actor, payload, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var (
	_ leave.TxStore           = (*Store)(nil)
	_ leave.Store             = (*core)(nil)
	_ leave.LeaveTypeResolver = (*Store)(nil)
	_ leave.AuditRecorder     = (*Store)(nil)
)
