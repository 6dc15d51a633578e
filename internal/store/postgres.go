package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `event_id, event_time, received_time, machine_id, duration_ms, defect_count, payload_hash`

// PostgresLedger is the durable ledger backed by a pgx connection pool.
type PostgresLedger struct {
	pool  *pgxpool.Pool
	dbURL string
}

// NewPostgresLedger creates a connection pool and fails fast if DB is unreachable.
func NewPostgresLedger(ctx context.Context, dbURL string) (*PostgresLedger, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresLedger{pool: pool, dbURL: dbURL}, nil
}

// EnsureSchema applies the embedded migrations. Safe to run multiple times.
func (p *PostgresLedger) EnsureSchema() error {
	return RunMigrations(p.dbURL)
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresLedger) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (p *PostgresLedger) Close() {
	p.pool.Close()
}

func (p *PostgresLedger) Get(ctx context.Context, eventID string) (Event, bool, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM machine_events WHERE event_id=$1`, eventID)

	ev, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, false, nil
	}
	if err != nil {
		return Event{}, false, unavailable("get event", err)
	}
	return ev, true, nil
}

// InsertIfAbsent relies on the unique event_id constraint; a concurrent
// insert of the same id makes RETURNING yield no row.
func (p *PostgresLedger) InsertIfAbsent(ctx context.Context, ev Event) error {
	var one int
	err := p.pool.QueryRow(ctx, `
		INSERT INTO machine_events(`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING 1
	`, ev.EventID, ev.EventTime, ev.ReceivedTime, ev.MachineID, ev.DurationMs, ev.DefectCount, ev.PayloadHash).Scan(&one)

	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAlreadyExists
	}
	return writeError("insert event", err)
}

func (p *PostgresLedger) CompareAndUpdate(ctx context.Context, eventID, expectedHash string, next Event) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE machine_events
		SET event_time=$3, received_time=$4, machine_id=$5,
		    duration_ms=$6, defect_count=$7, payload_hash=$8
		WHERE event_id=$1
		  AND payload_hash=$2
		  AND received_time < $4
	`, eventID, expectedHash, next.EventTime, next.ReceivedTime, next.MachineID, next.DurationMs, next.DefectCount, next.PayloadHash)
	if err != nil {
		return writeError("update event", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// QueryWindow returns events of one machine in [start,end).
func (p *PostgresLedger) QueryWindow(ctx context.Context, machineID string, start, end time.Time) ([]Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM machine_events
		WHERE machine_id=$1
		  AND event_time >= $2
		  AND event_time <  $3
		ORDER BY event_time, event_id
	`, machineID, start, end)
	if err != nil {
		return nil, unavailable("query machine window", err)
	}
	return collectEvents(rows)
}

// QueryWindowAll returns events of every machine in [start,end).
func (p *PostgresLedger) QueryWindowAll(ctx context.Context, start, end time.Time) ([]Event, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+eventColumns+`
		FROM machine_events
		WHERE event_time >= $1
		  AND event_time <  $2
		ORDER BY event_time, event_id
	`, start, end)
	if err != nil {
		return nil, unavailable("query window", err)
	}
	return collectEvents(rows)
}

func scanEvent(row pgx.Row) (Event, error) {
	var ev Event
	err := row.Scan(
		&ev.EventID,
		&ev.EventTime,
		&ev.ReceivedTime,
		&ev.MachineID,
		&ev.DurationMs,
		&ev.DefectCount,
		&ev.PayloadHash,
	)
	ev.EventTime = ev.EventTime.UTC()
	ev.ReceivedTime = ev.ReceivedTime.UTC()
	return ev, err
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, unavailable("scan event", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate events", err)
	}
	return out, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// writeError separates data exceptions (SQLSTATE class 22) and check
// violations, which are about the event, from failures of the store.
func writeError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (strings.HasPrefix(pgErr.Code, "22") || pgErr.Code == "23514") {
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidEvent, err)
	}
	return unavailable(op, err)
}

var _ Ledger = (*PostgresLedger)(nil)
