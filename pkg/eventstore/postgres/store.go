package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iscc/iscc-hub/pkg/eventstore"
)

// poolAcquireTimeout bounds how long a query waits for a free connection,
// mirroring the teacher's poolConnectionAcquireTimeout guard against an
// exhausted pool hanging a request indefinitely.
const poolAcquireTimeout = 10 * time.Second

// Store is the pgx-backed eventstore.Store implementation.
type Store struct {
	pool *pgxpool.Pool
}

// Open creates the connection pool, runs migrations, and returns a ready
// Store.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("eventstore/postgres: parse dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("eventstore/postgres: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("eventstore/postgres: ping: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	if err := runMigrations(ctx, cfg.DSN, logger); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Healthcheck(ctx context.Context) error {
	acquireCtx, cancel := context.WithTimeout(ctx, poolAcquireTimeout)
	defer cancel()
	return s.pool.Ping(acquireCtx)
}

const uniqueViolation = "23505"

func (s *Store) Append(ctx context.Context, ev *eventstore.Event) error {
	noteBytes, err := json.Marshal(ev.NoteRaw)
	if err != nil {
		return fmt.Errorf("eventstore/postgres: marshal note_bytes: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO events (seq, iscc_id, ts_micros, server_id, pubkey, nonce,
			datahash, iscc_code, metahash, gateway, note_bytes, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		ev.Seq, ev.IsccID, int64(ev.TsMicros), int32(ev.ServerID), ev.Pubkey, ev.Nonce,
		ev.Datahash, ev.IsccCode, nullableString(ev.Metahash), nullableString(ev.Gateway),
		noteBytes, ev.ReceivedAt)
	if err != nil {
		if code, constraint, ok := uniqueViolationDetail(err); ok {
			return mapUniqueViolation(code, constraint)
		}
		return &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
	}

	for _, unit := range ev.Units {
		if _, err := tx.Exec(ctx, `INSERT INTO units (event_seq, unit_body) VALUES ($1,$2)`, ev.Seq, unit); err != nil {
			return &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
	}
	return nil
}

func uniqueViolationDetail(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	return "", "", false
}

func mapUniqueViolation(_ string, constraint string) error {
	switch constraint {
	case "events_nonce_key":
		return &eventstore.StoreError{Code: eventstore.ErrDuplicateNonce, Message: "nonce already admitted"}
	case "events_iscc_id_key":
		return &eventstore.StoreError{Code: eventstore.ErrDuplicateIsccID, Message: "iscc_id already committed"}
	case "events_pkey":
		return &eventstore.StoreError{Code: eventstore.ErrDuplicateSeq, Message: "seq already committed"}
	default:
		return &eventstore.StoreError{Code: eventstore.ErrTransient, Message: "unique constraint violated: " + constraint}
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const eventColumns = `seq, iscc_id, ts_micros, server_id, pubkey, nonce, datahash, iscc_code,
	coalesce(metahash,''), coalesce(gateway,''), note_bytes, received_at`

func (s *Store) scanEvent(row pgx.Row) (*eventstore.Event, error) {
	var ev eventstore.Event
	var tsMicros, serverID int64
	var noteBytes []byte

	err := row.Scan(&ev.Seq, &ev.IsccID, &tsMicros, &serverID, &ev.Pubkey, &ev.Nonce,
		&ev.Datahash, &ev.IsccCode, &ev.Metahash, &ev.Gateway, &noteBytes, &ev.ReceivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &eventstore.StoreError{Code: eventstore.ErrNotFound, Message: "no matching event"}
	}
	if err != nil {
		return nil, &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
	}

	ev.TsMicros = uint64(tsMicros)
	ev.ServerID = uint16(serverID)
	if err := json.Unmarshal(noteBytes, &ev.NoteRaw); err != nil {
		return nil, &eventstore.StoreError{Code: eventstore.ErrTransient, Message: "decode note_bytes: " + err.Error()}
	}

	units, err := s.unitsForSeq(context.Background(), ev.Seq)
	if err != nil {
		return nil, err
	}
	ev.Units = units

	return &ev, nil
}

func (s *Store) unitsForSeq(ctx context.Context, seq uint64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT unit_body FROM units WHERE event_seq = $1 ORDER BY unit_body`, seq)
	if err != nil {
		return nil, &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
	}
	defer rows.Close()

	var units []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *Store) Tail(ctx context.Context) (eventstore.Tail, error) {
	row := s.pool.QueryRow(ctx, `SELECT coalesce(max(seq),0), coalesce(max(ts_micros),0) FROM events`)
	var lastSeq, lastTs int64
	if err := row.Scan(&lastSeq, &lastTs); err != nil {
		return eventstore.Tail{}, &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
	}
	return eventstore.Tail{LastSeq: uint64(lastSeq), LastTsMicros: uint64(lastTs)}, nil
}

func (s *Store) GetBySeq(ctx context.Context, seq uint64) (*eventstore.Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE seq = $1`, seq)
	return s.scanEvent(row)
}

func (s *Store) GetByIsccID(ctx context.Context, isccID string) (*eventstore.Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE iscc_id = $1`, isccID)
	return s.scanEvent(row)
}

func (s *Store) GetByNonce(ctx context.Context, nonce string) (*eventstore.Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE nonce = $1`, nonce)
	return s.scanEvent(row)
}

func (s *Store) Scan(ctx context.Context, seqFrom uint64, limit int) ([]*eventstore.Event, error) {
	if limit < 0 {
		return nil, &eventstore.StoreError{Code: eventstore.ErrInvalidArgument, Message: "limit must be non-negative"}
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE seq >= $1 ORDER BY seq ASC`
	args := []any{seqFrom}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	return s.queryEvents(ctx, query, args...)
}

func (s *Store) LookupByDatahash(ctx context.Context, datahash string) ([]*eventstore.Event, error) {
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE datahash = $1 ORDER BY seq ASC`, datahash)
}

func (s *Store) LookupByIsccCode(ctx context.Context, isccCode string) ([]*eventstore.Event, error) {
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE iscc_code = $1 ORDER BY seq ASC`, isccCode)
}

func (s *Store) LookupByUnit(ctx context.Context, unit string) ([]*eventstore.Event, error) {
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE seq IN
		(SELECT event_seq FROM units WHERE unit_body = $1) ORDER BY seq ASC`, unit)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]*eventstore.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &eventstore.StoreError{Code: eventstore.ErrTransient, Message: err.Error()}
	}
	defer rows.Close()

	var events []*eventstore.Event
	for rows.Next() {
		ev, err := s.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *Store) Digest(ctx context.Context, from, to uint64) ([32]byte, error) {
	events, err := s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE seq BETWEEN $1 AND $2 ORDER BY seq ASC`, from, to)
	if err != nil {
		return [32]byte{}, err
	}
	return eventstore.RollingDigest(events)
}

var _ eventstore.Store = (*Store)(nil)
