package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	sessionCols = `id, tenant_id, user_id, created_at, updated_at`
	turnCols    = `id, conversation_id, seq, question, answer, cited_source_ids, confidence, degraded, created_at`

	insertSessionSQL = `INSERT INTO conversations (tenant_id, user_id)
	VALUES ($1, $2)
	RETURNING ` + sessionCols

	getSessionSQL = `SELECT ` + sessionCols + ` FROM conversations
	WHERE tenant_id = $1 AND id = $2`

	listSessionsSQL = `SELECT ` + sessionCols + ` FROM conversations
	WHERE tenant_id = $1
	ORDER BY updated_at DESC
	LIMIT $2`

	deleteSessionSQL = `DELETE FROM conversations WHERE tenant_id = $1 AND id = $2`

	touchSessionSQL = `UPDATE conversations SET updated_at = now() WHERE id = $1`

	nextSeqSQL = `SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE conversation_id = $1`

	insertTurnSQL = `INSERT INTO turns (conversation_id, seq, question, answer, cited_source_ids, confidence, degraded)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at`

	recentTurnsSQL = `SELECT ` + turnCols + ` FROM turns
	WHERE conversation_id = $1
	ORDER BY seq DESC
	LIMIT $2`

	listTurnsSQL = `SELECT ` + turnCols + ` FROM turns
	WHERE conversation_id = $1
	ORDER BY seq ASC
	LIMIT $2`

	countSessionsSQL = `SELECT COUNT(*) FROM conversations WHERE tenant_id = $1`

	countTurnsSQL = `SELECT COUNT(*) FROM turns t
	JOIN conversations c ON c.id = t.conversation_id
	WHERE c.tenant_id = $1`

	// pg_advisory_xact_lock releases automatically at commit/rollback.
	advisoryLockSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`
)

const (
	// DefaultListLimit applies when a list call passes no limit.
	DefaultListLimit = 100

	// MaxListLimit is the hard ceiling for one list call.
	MaxListLimit = 1000

	// maxContextTurns bounds how many turns one context query loads
	// before the token budget trims them.
	maxContextTurns = 200
)

// Store persists sessions and turns in Postgres.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Begin starts a fresh session for the tenant and returns it. Callers
// that receive a query without a session id create one here and hand the
// new id back to the client.
func (s *Store) Begin(ctx context.Context, tenantID, userID string) (Session, error) {
	if tenantID == "" {
		return Session{}, ErrMissingTenant
	}

	var sess Session
	err := s.pool.QueryRow(ctx, insertSessionSQL, tenantID, userID).Scan(
		&sess.ID, &sess.TenantID, &sess.UserID, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return Session{}, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("session started", "tenant", tenantID, "session_id", sess.ID)
	return sess, nil
}

// GetSession returns one session, or ErrSessionNotFound.
func (s *Store) GetSession(ctx context.Context, tenantID string, id uuid.UUID) (Session, error) {
	if tenantID == "" {
		return Session{}, ErrMissingTenant
	}

	var sess Session
	err := s.pool.QueryRow(ctx, getSessionSQL, tenantID, id).Scan(
		&sess.ID, &sess.TenantID, &sess.UserID, &sess.CreatedAt, &sess.UpdatedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Session{}, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	case err != nil:
		return Session{}, fmt.Errorf("querying session: %w", err)
	default:
		return sess, nil
	}
}

// ListSessions returns the tenant's sessions, most recently active
// first. A non-positive limit falls back to DefaultListLimit.
func (s *Store) ListSessions(ctx context.Context, tenantID string, limit int) ([]Session, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.pool.Query(ctx, listSessionsSQL, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.TenantID, &sess.UserID, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes the session and, through the schema's cascade,
// all of its turns in the same statement. Returns ErrSessionNotFound if
// the tenant owns no such session.
func (s *Store) DeleteSession(ctx context.Context, tenantID string, id uuid.UUID) error {
	if tenantID == "" {
		return ErrMissingTenant
	}

	tag, err := s.pool.Exec(ctx, deleteSessionSQL, tenantID, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}

	s.logger.Info("session deleted", "tenant", tenantID, "session_id", id)
	return nil
}

// AppendTurn appends one exchange to the session. The sequence number is
// assigned under a per-session advisory lock, so concurrent appends
// serialize and the stored order is exactly the append order.
func (s *Store) AppendTurn(ctx context.Context, tenantID string, sessionID uuid.UUID, input TurnInput) (Turn, error) {
	if tenantID == "" {
		return Turn{}, ErrMissingTenant
	}
	if input.Question == "" {
		return Turn{}, ErrEmptyQuestion
	}
	if input.CitedSourceIDs == nil {
		input.CitedSourceIDs = []uuid.UUID{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Turn{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	key := "turns/" + sessionID.String()
	if _, err := tx.Exec(ctx, advisoryLockSQL, key); err != nil {
		return Turn{}, fmt.Errorf("acquiring session lock: %w", err)
	}

	var sess Session
	err = tx.QueryRow(ctx, getSessionSQL, tenantID, sessionID).Scan(
		&sess.ID, &sess.TenantID, &sess.UserID, &sess.CreatedAt, &sess.UpdatedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Turn{}, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	case err != nil:
		return Turn{}, fmt.Errorf("querying session: %w", err)
	}

	turn := Turn{
		SessionID:      sessionID,
		Question:       input.Question,
		Answer:         input.Answer,
		CitedSourceIDs: input.CitedSourceIDs,
		Confidence:     input.Confidence,
		Degraded:       input.Degraded,
	}
	if err := tx.QueryRow(ctx, nextSeqSQL, sessionID).Scan(&turn.Seq); err != nil {
		return Turn{}, fmt.Errorf("assigning sequence: %w", err)
	}
	err = tx.QueryRow(ctx, insertTurnSQL,
		sessionID, turn.Seq, turn.Question, turn.Answer,
		turn.CitedSourceIDs, turn.Confidence, turn.Degraded,
	).Scan(&turn.ID, &turn.CreatedAt)
	if err != nil {
		return Turn{}, fmt.Errorf("inserting turn: %w", err)
	}
	if _, err := tx.Exec(ctx, touchSessionSQL, sessionID); err != nil {
		return Turn{}, fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Turn{}, fmt.Errorf("committing turn: %w", err)
	}

	s.logger.Debug("turn appended", "tenant", tenantID, "session_id", sessionID, "seq", turn.Seq)
	return turn, nil
}

// Context returns the session's recent turns, most recent first, trimmed
// to the token budget by dropping whole turns from the old end. A
// non-positive budget yields an empty context. Turns are never reordered
// and never cut mid-turn; if even the newest turn exceeds the budget the
// context is empty.
func (s *Store) Context(ctx context.Context, tenantID string, sessionID uuid.UUID, maxTokens int) ([]Turn, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if maxTokens <= 0 {
		return []Turn{}, nil
	}
	if _, err := s.GetSession(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, recentTurnsSQL, sessionID, maxContextTurns)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	return trimToBudget(turns, maxTokens), nil
}

// ListTurns returns the session's turns in append order.
func (s *Store) ListTurns(ctx context.Context, tenantID string, sessionID uuid.UUID, limit int) ([]Turn, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if _, err := s.GetSession(ctx, tenantID, sessionID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, listTurnsSQL, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// TenantStats reports the tenant's session and turn counts.
func (s *Store) TenantStats(ctx context.Context, tenantID string) (SessionStats, error) {
	if tenantID == "" {
		return SessionStats{}, ErrMissingTenant
	}

	var stats SessionStats
	if err := s.pool.QueryRow(ctx, countSessionsSQL, tenantID).Scan(&stats.Sessions); err != nil {
		return SessionStats{}, fmt.Errorf("counting sessions: %w", err)
	}
	if err := s.pool.QueryRow(ctx, countTurnsSQL, tenantID).Scan(&stats.Turns); err != nil {
		return SessionStats{}, fmt.Errorf("counting turns: %w", err)
	}
	return stats, nil
}

func scanTurns(rows pgx.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(
			&t.ID, &t.SessionID, &t.Seq, &t.Question, &t.Answer,
			&t.CitedSourceIDs, &t.Confidence, &t.Degraded, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}
	return turns, nil
}
