package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createExchangeTable = `
CREATE TABLE IF NOT EXISTS exchange_audit (
    id            TEXT PRIMARY KEY,
    session_id    TEXT NOT NULL,
    channel       TEXT NOT NULL,
    input         TEXT NOT NULL,
    language_code TEXT NOT NULL,
    response      TEXT NOT NULL,
    original_text TEXT,
    source        TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS exchange_audit_session_idx ON exchange_audit (session_id, created_at);
`

// PostgresLog writes entries to the exchange_audit table.
type PostgresLog struct {
	DB *pgxpool.Pool
}

// NewPostgresLog connects to Postgres and creates the table if missing.
func NewPostgresLog(ctx context.Context, connStr string) (*PostgresLog, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if _, err := db.Exec(ctx, createExchangeTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create exchange_audit: %w", err)
	}
	return &PostgresLog{DB: db}, nil
}

func (p *PostgresLog) Append(ctx context.Context, e Entry) error {
	if p == nil || p.DB == nil {
		return nil
	}
	e = prepare(e)
	var original *string
	if e.OriginalText != "" {
		original = &e.OriginalText
	}
	_, err := p.DB.Exec(ctx, `
        INSERT INTO exchange_audit (id, session_id, channel, input, language_code, response, original_text, source, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
        `, e.ID, e.SessionID, string(e.Channel), e.Input, e.LanguageCode, e.Response, original, e.Source, e.At)
	return err
}

// Recent returns the newest entries for a session, oldest first.
func (p *PostgresLog) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	rows, err := p.DB.Query(ctx, `
        SELECT id, session_id, channel, input, language_code, response, COALESCE(original_text, ''), source, created_at
        FROM (
            SELECT * FROM exchange_audit WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2
        ) recent
        ORDER BY created_at ASC;
        `, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var channel string
		if err := rows.Scan(&e.ID, &e.SessionID, &channel, &e.Input, &e.LanguageCode, &e.Response, &e.OriginalText, &e.Source, &e.At); err != nil {
			return nil, err
		}
		e.Channel = Channel(channel)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the pool.
func (p *PostgresLog) Close() {
	if p != nil && p.DB != nil {
		p.DB.Close()
	}
}
