package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vbonduro/nutriai/internal/audit"
	"github.com/vbonduro/nutriai/internal/domain"
)

// AILogStore persists gateway audit entries in SQLite.
type AILogStore struct {
	db *sqlx.DB
}

var _ audit.Log = (*AILogStore)(nil)

func NewAILogStore(db *sql.DB) *AILogStore {
	return &AILogStore{db: sqlx.NewDb(db, "sqlite")}
}

// aiLogRow maps one ai_logs row. Timestamps are unix nanoseconds.
type aiLogRow struct {
	ID              string `db:"id"`
	TimestampNs     int64  `db:"timestamp_ns"`
	CallType        string `db:"call_type"`
	Provider        string `db:"provider"`
	Model           string `db:"model"`
	Prompt          string `db:"prompt"`
	Result          string `db:"result"`
	Error           string `db:"error"`
	ErrorKind       string `db:"error_kind"`
	Success         bool   `db:"success"`
	DurationMs      int64  `db:"duration_ms"`
	EstimatedTokens int    `db:"estimated_tokens"`
}

func toRow(e domain.AiLogEntry) aiLogRow {
	return aiLogRow{
		ID:              e.ID,
		TimestampNs:     e.Timestamp.UnixNano(),
		CallType:        string(e.CallType),
		Provider:        string(e.Provider),
		Model:           e.Model,
		Prompt:          e.Prompt,
		Result:          e.Result,
		Error:           e.Error,
		ErrorKind:       string(e.ErrorKind),
		Success:         e.Success,
		DurationMs:      e.DurationMs,
		EstimatedTokens: e.EstimatedTokens,
	}
}

func (r aiLogRow) entry() domain.AiLogEntry {
	return domain.AiLogEntry{
		ID:              r.ID,
		Timestamp:       time.Unix(0, r.TimestampNs).UTC(),
		CallType:        domain.CallType(r.CallType),
		Provider:        domain.Provider(r.Provider),
		Model:           r.Model,
		Prompt:          r.Prompt,
		Result:          r.Result,
		Error:           r.Error,
		ErrorKind:       domain.ErrorKind(r.ErrorKind),
		Success:         r.Success,
		DurationMs:      r.DurationMs,
		EstimatedTokens: r.EstimatedTokens,
	}
}

func (s *AILogStore) Append(ctx context.Context, entry domain.AiLogEntry) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO ai_logs (
			id, timestamp_ns, call_type, provider, model, prompt, result,
			error, error_kind, success, duration_ms, estimated_tokens
		) VALUES (
			:id, :timestamp_ns, :call_type, :provider, :model, :prompt, :result,
			:error, :error_kind, :success, :duration_ms, :estimated_tokens
		)
	`, toRow(entry))
	if err != nil {
		return fmt.Errorf("failed to append ai log entry: %w", err)
	}
	return nil
}

// Latest returns up to limit entries, most recent first. Entries with equal
// timestamps list the later insert first.
func (s *AILogStore) Latest(ctx context.Context, limit int) ([]domain.AiLogEntry, error) {
	if limit <= 0 {
		limit = audit.DefaultLimit
	}

	var rows []aiLogRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, timestamp_ns, call_type, provider, model, prompt, result,
		       error, error_kind, success, duration_ms, estimated_tokens
		FROM ai_logs
		ORDER BY timestamp_ns DESC, seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ai log entries: %w", err)
	}

	entries := make([]domain.AiLogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

func (s *AILogStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM ai_logs`); err != nil {
		return 0, fmt.Errorf("failed to count ai log entries: %w", err)
	}
	return n, nil
}
