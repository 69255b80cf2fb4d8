/*
Package sqlite provides a SQLite-backed FactSource plus reconciliation
run records.

PURPOSE:
  Implements billing.FactSource over the raw fact tables and persists the
  scheduler's run history. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

FACTS ARE UPSTREAM TRUTH:
  The engine never writes fact rows; the Insert* methods exist for the
  collaborators that capture stays and payments (and for fixtures). There
  are no UPDATE statements on fact tables: a cancelled charge arrives
  with its cancellation marker set, and reconciliation results are
  derived, never stored.

ORPHAN SEMANTICS:
  Fact queries LEFT JOIN reservations: a charge or payment whose
  reservation is missing still loads, because the engine must see the
  orphan to exclude and report it. An inner join here is exactly the
  historical bug shape this system eliminates.

WAL MODE:
  Opened with WAL for concurrent readers; reconciliation is read-heavy.

SEE ALSO:
  - billing/facts.go: interface definition
  - billing/source/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/lodgeworks/billing-engine/billing"
)

// Store implements billing.FactSource over SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Reservation facts (owning context of every line)
	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		hotel_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		check_in TEXT NOT NULL,
		check_out TEXT NOT NULL,
		status TEXT NOT NULL,
		res_type TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_hotel_client
		ON reservations(hotel_id, client_id);

	-- Nightly charge facts (immutable once billed)
	CREATE TABLE IF NOT EXISTS nightly_charges (
		id TEXT PRIMARY KEY,
		reservation_id TEXT NOT NULL,
		date TEXT NOT NULL,
		price TEXT NOT NULL,
		mode TEXT NOT NULL,
		occupants INTEGER NOT NULL DEFAULT 1,
		billable INTEGER NOT NULL DEFAULT 1,
		cancelled INTEGER NOT NULL DEFAULT 0
	);

	-- Hot path: period/cumulative revenue queries
	CREATE INDEX IF NOT EXISTS idx_charges_reservation_date
		ON nightly_charges(reservation_id, date);
	CREATE INDEX IF NOT EXISTS idx_charges_date
		ON nightly_charges(date);

	-- Rate override facts (tax-rate slices of a charge)
	CREATE TABLE IF NOT EXISTS rate_overrides (
		id INTEGER PRIMARY KEY,
		charge_id TEXT NOT NULL,
		tax_rate TEXT,
		price TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_overrides_charge
		ON rate_overrides(charge_id);

	-- Add-on charge facts
	CREATE TABLE IF NOT EXISTS addon_charges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		charge_id TEXT NOT NULL,
		date TEXT NOT NULL,
		price TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		tax_rate TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_addons_charge
		ON addon_charges(charge_id);

	-- Payment facts (captured, never mutated)
	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reservation_id TEXT NOT NULL,
		date TEXT NOT NULL,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_reservation_date
		ON payments(reservation_id, date);

	-- Scheduler run history (audit/UI)
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id TEXT PRIMARY KEY,
		scope TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL,
		result_count INTEGER NOT NULL DEFAULT 0,
		warning_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FACT SOURCE - read side
// =============================================================================

func (s *Store) Reservations(ctx context.Context, f billing.FactFilter) ([]billing.ReservationFact, error) {
	q := `SELECT id, hotel_id, client_id, check_in, check_out, status, res_type FROM reservations`
	where, args := reservationFilter("", f)
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.ReservationFact
	for rows.Next() {
		var r billing.ReservationFact
		var checkIn, checkOut, status, resType string
		if err := rows.Scan(&r.ID, &r.HotelID, &r.ClientID, &checkIn, &checkOut, &status, &resType); err != nil {
			return nil, err
		}
		if r.CheckIn, err = billing.ParseDate(checkIn); err != nil {
			return nil, err
		}
		if r.CheckOut, err = billing.ParseDate(checkOut); err != nil {
			return nil, err
		}
		r.Status = billing.ReservationStatus(status)
		r.Type = billing.ReservationType(resType)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) NightlyCharges(ctx context.Context, f billing.FactFilter) ([]billing.NightlyChargeFact, error) {
	q := `SELECT c.id, c.reservation_id, c.date, c.price, c.mode, c.occupants, c.billable, c.cancelled
		FROM nightly_charges c
		LEFT JOIN reservations r ON r.id = c.reservation_id`
	where, args := factLineFilter("c.date", f)
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY c.date, c.id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.NightlyChargeFact
	for rows.Next() {
		var c billing.NightlyChargeFact
		var date, price, mode string
		var billable, cancelled int
		if err := rows.Scan(&c.ID, &c.ReservationID, &date, &price, &mode, &c.Occupants, &billable, &cancelled); err != nil {
			return nil, err
		}
		if c.Date, err = billing.ParseDate(date); err != nil {
			return nil, err
		}
		if c.Price, err = parseMoney(price); err != nil {
			return nil, err
		}
		c.Mode = billing.PricingMode(mode)
		c.Billable = billable != 0
		c.Cancelled = cancelled != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) RateOverrides(ctx context.Context, f billing.FactFilter) ([]billing.RateOverrideFact, error) {
	q := `SELECT o.id, o.charge_id, o.tax_rate, o.price
		FROM rate_overrides o
		JOIN nightly_charges c ON c.id = o.charge_id
		LEFT JOIN reservations r ON r.id = c.reservation_id`
	where, args := factLineFilter("c.date", f)
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY o.charge_id, o.id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.RateOverrideFact
	for rows.Next() {
		var ov billing.RateOverrideFact
		var rate sql.NullString
		var price string
		if err := rows.Scan(&ov.ID, &ov.ChargeID, &rate, &price); err != nil {
			return nil, err
		}
		if rate.Valid {
			d, err := decimal.NewFromString(rate.String)
			if err != nil {
				return nil, err
			}
			ov.TaxRate = &d
		}
		if ov.Price, err = parseMoney(price); err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, rows.Err()
}

func (s *Store) Addons(ctx context.Context, f billing.FactFilter) ([]billing.AddonFact, error) {
	q := `SELECT a.charge_id, a.date, a.price, a.quantity, a.tax_rate
		FROM addon_charges a
		LEFT JOIN nightly_charges c ON c.id = a.charge_id
		LEFT JOIN reservations r ON r.id = c.reservation_id`
	where, args := factLineFilter("a.date", f)
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY a.date, a.id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.AddonFact
	for rows.Next() {
		var a billing.AddonFact
		var date, price, rate string
		if err := rows.Scan(&a.ChargeID, &date, &price, &a.Quantity, &rate); err != nil {
			return nil, err
		}
		if a.Date, err = billing.ParseDate(date); err != nil {
			return nil, err
		}
		if a.Price, err = parseMoney(price); err != nil {
			return nil, err
		}
		if a.TaxRate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Payments(ctx context.Context, f billing.FactFilter) ([]billing.PaymentFact, error) {
	q := `SELECT p.reservation_id, p.date, p.value
		FROM payments p
		LEFT JOIN reservations r ON r.id = p.reservation_id`
	where, args := factLineFilter("p.date", f)
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY p.date, p.id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.PaymentFact
	for rows.Next() {
		var p billing.PaymentFact
		var date, value string
		if err := rows.Scan(&p.ReservationID, &date, &value); err != nil {
			return nil, err
		}
		if p.Date, err = billing.ParseDate(date); err != nil {
			return nil, err
		}
		if p.Value, err = parseMoney(value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// FILTER SQL
// =============================================================================

// reservationFilter builds the hotel/client predicate. prefix is the
// join alias ("r." when joined, "" on the reservations table itself).
func reservationFilter(prefix string, f billing.FactFilter) (string, []any) {
	var conds []string
	var args []any
	if len(f.HotelIDs) > 0 {
		conds = append(conds, inClause(prefix+"hotel_id", len(f.HotelIDs)))
		for _, h := range f.HotelIDs {
			args = append(args, string(h))
		}
	}
	if len(f.ClientIDs) > 0 {
		conds = append(conds, inClause(prefix+"client_id", len(f.ClientIDs)))
		for _, c := range f.ClientIDs {
			args = append(args, string(c))
		}
	}
	return strings.Join(conds, " AND "), args
}

// factLineFilter builds the predicate for line queries LEFT JOINed to
// reservations. Orphans (r.id IS NULL) always pass: the engine excludes
// and reports them itself.
func factLineFilter(dateCol string, f billing.FactFilter) (string, []any) {
	var conds []string
	var args []any
	if !f.Through.IsZero() {
		conds = append(conds, dateCol+" <= ?")
		args = append(args, f.Through.String())
	}
	resWhere, resArgs := reservationFilter("r.", f)
	if resWhere != "" {
		conds = append(conds, "(r.id IS NULL OR ("+resWhere+"))")
		args = append(args, resArgs...)
	}
	return strings.Join(conds, " AND "), args
}

func inClause(col string, n int) string {
	return col + " IN (" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
}

func parseMoney(s string) (billing.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return billing.Money{}, err
	}
	return billing.Money{Value: d}, nil
}

// =============================================================================
// FACT CAPTURE - write side, used by upstream collaborators and fixtures
// =============================================================================

func (s *Store) InsertReservation(ctx context.Context, r billing.ReservationFact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reservations (id, hotel_id, client_id, check_in, check_out, status, res_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.HotelID), string(r.ClientID),
		r.CheckIn.String(), r.CheckOut.String(), string(r.Status), string(r.Type))
	return err
}

func (s *Store) InsertNightlyCharge(ctx context.Context, c billing.NightlyChargeFact, overrides ...billing.RateOverrideFact) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO nightly_charges (id, reservation_id, date, price, mode, occupants, billable, cancelled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.ID), string(c.ReservationID), c.Date.String(), c.Price.Value.String(),
		string(c.Mode), c.Occupants, boolInt(c.Billable), boolInt(c.Cancelled))
	if err != nil {
		return err
	}
	for _, ov := range overrides {
		var rate any
		if ov.TaxRate != nil {
			rate = ov.TaxRate.String()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO rate_overrides (id, charge_id, tax_rate, price) VALUES (?, ?, ?, ?)`,
			int64(ov.ID), string(ov.ChargeID), rate, ov.Price.Value.String())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) InsertAddon(ctx context.Context, a billing.AddonFact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO addon_charges (charge_id, date, price, quantity, tax_rate) VALUES (?, ?, ?, ?, ?)`,
		string(a.ChargeID), a.Date.String(), a.Price.Value.String(), a.Quantity, a.TaxRate.String())
	return err
}

func (s *Store) InsertPayment(ctx context.Context, p billing.PaymentFact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (reservation_id, date, value) VALUES (?, ?, ?)`,
		string(p.ReservationID), p.Date.String(), p.Value.Value.String())
	return err
}

// Reset clears all fact tables. Fixture loading only.
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"payments", "addon_charges", "rate_overrides", "nightly_charges", "reservations"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// RECONCILIATION RUNS - scheduler audit trail
// =============================================================================

// RunRecord is one scheduler (or manual) reconciliation run.
type RunRecord struct {
	ID           string
	Scope        billing.Scope
	PeriodStart  billing.DateStamp
	PeriodEnd    billing.DateStamp
	Status       string // "running", "completed", "failed"
	ResultCount  int
	WarningCount int
	Error        string
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// SaveRun inserts or replaces a run record.
func (s *Store) SaveRun(ctx context.Context, run RunRecord) error {
	var completed any
	if run.CompletedAt != nil {
		completed = run.CompletedAt.UTC().Format(time.RFC3339)
	}
	var runErr any
	if run.Error != "" {
		runErr = run.Error
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reconciliation_runs
		 (id, scope, period_start, period_end, status, result_count, warning_count, error, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Scope), run.PeriodStart.String(), run.PeriodEnd.String(),
		run.Status, run.ResultCount, run.WarningCount, runErr,
		run.StartedAt.UTC().Format(time.RFC3339), completed)
	return err
}

// ListRuns returns run history, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope, period_start, period_end, status, result_count, warning_count, error, started_at, completed_at
		 FROM reconciliation_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var scope, start, end, started string
		var runErr, completed sql.NullString
		if err := rows.Scan(&r.ID, &scope, &start, &end, &r.Status, &r.ResultCount, &r.WarningCount, &runErr, &started, &completed); err != nil {
			return nil, err
		}
		r.Scope = billing.Scope(scope)
		if r.PeriodStart, err = billing.ParseDate(start); err != nil {
			return nil, err
		}
		if r.PeriodEnd, err = billing.ParseDate(end); err != nil {
			return nil, err
		}
		r.Error = runErr.String
		if r.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, err
		}
		if completed.Valid {
			t, err := time.Parse(time.RFC3339, completed.String)
			if err != nil {
				return nil, err
			}
			r.CompletedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
