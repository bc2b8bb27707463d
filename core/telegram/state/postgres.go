package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jakovchuk/socalska-report-bot/core/logger"
)

type sessionRow struct {
	ChatID    int64     `db:"chat_id"`
	State     string    `db:"state"`
	Answers   []byte    `db:"answers"`
	Tracked   []byte    `db:"tracked"`
	UpdatedAt time.Time `db:"updated_at"`
}

type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore returns a Store backed by the report_sessions table.
// The schema is created by the migrations in /migrations.
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

const (
	selectSessionSQL = `SELECT chat_id, state, answers, tracked, updated_at FROM report_sessions WHERE chat_id = $1`
	upsertSessionSQL = `INSERT INTO report_sessions (chat_id, state, answers, tracked, updated_at)
VALUES (:chat_id, :state, :answers, :tracked, :updated_at)
ON CONFLICT (chat_id) DO UPDATE SET
	state = EXCLUDED.state,
	answers = EXCLUDED.answers,
	tracked = EXCLUDED.tracked,
	updated_at = EXCLUDED.updated_at`
	deleteSessionSQL = `DELETE FROM report_sessions WHERE chat_id = $1`
	activeSessionSQL = `SELECT EXISTS (SELECT 1 FROM report_sessions WHERE chat_id = $1 AND state <> $2)`
)

func (p *postgresStore) Get(ctx context.Context, chatID int64) (Session, error) {
	var row sessionRow
	err := p.db.GetContext(ctx, &row, selectSessionSQL, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewSession(chatID), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("select session %d: %w", chatID, err)
	}

	s := Session{ChatID: row.ChatID, State: State(row.State), UpdatedAt: row.UpdatedAt}
	if err := json.Unmarshal(row.Answers, &s.Answers); err != nil {
		return Session{}, fmt.Errorf("decode answers %d: %w", chatID, err)
	}
	if err := json.Unmarshal(row.Tracked, &s.Tracked); err != nil {
		return Session{}, fmt.Errorf("decode tracked %d: %w", chatID, err)
	}
	return s.Clone(), nil
}

func (p *postgresStore) Save(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrNilSession
	}
	if !s.Active() {
		return p.Clear(ctx, s.ChatID)
	}
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	tracked, err := json.Marshal(s.Tracked)
	if err != nil {
		return fmt.Errorf("encode tracked: %w", err)
	}
	s.UpdatedAt = time.Now().UTC()
	row := sessionRow{
		ChatID:    s.ChatID,
		State:     string(s.State),
		Answers:   answers,
		Tracked:   tracked,
		UpdatedAt: s.UpdatedAt,
	}
	if _, err := p.db.NamedExecContext(ctx, upsertSessionSQL, row); err != nil {
		return fmt.Errorf("upsert session %d: %w", s.ChatID, err)
	}
	return nil
}

func (p *postgresStore) Clear(ctx context.Context, chatID int64) error {
	if _, err := p.db.ExecContext(ctx, deleteSessionSQL, chatID); err != nil {
		return fmt.Errorf("delete session %d: %w", chatID, err)
	}
	return nil
}

func (p *postgresStore) InProgress(ctx context.Context, chatID int64) bool {
	var active bool
	if err := p.db.GetContext(ctx, &active, activeSessionSQL, chatID, string(StateIdle)); err != nil {
		logger.Warn(ctx, "store", "session.in_progress",
			slog.String("backend", "postgres"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return false
	}
	return active
}
