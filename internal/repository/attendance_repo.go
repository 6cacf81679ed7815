package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"festhub-backend/internal/attendance"
)

// AttendanceRepo is the Postgres-backed attendance.Store.
//
// The uniqueness invariant lives in the schema: a partial unique index on
// code WHERE state = 'active'. TryRedeem runs in a transaction that locks
// the session row, so the check-and-insert is indivisible per session and
// unrelated sessions never contend.
type AttendanceRepo struct {
	pool *pgxpool.Pool
}

func NewAttendanceRepo(pool *pgxpool.Pool) *AttendanceRepo {
	return &AttendanceRepo{pool: pool}
}

const uniqueViolation = "23505"

func (r *AttendanceRepo) Put(ctx context.Context, s *attendance.Session) error {
	query := `
		INSERT INTO attendance_sessions (id, code, owner_id, label, state, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.Code, s.OwnerID, s.Label, string(s.State), s.CreatedAt, s.ExpiresAt,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		// Another Active session holds this code. Expire stale holders so
		// the caller's retry has a chance, then report the collision.
		r.expireStaleByCode(ctx, s.Code, s.CreatedAt)
		return attendance.ErrDuplicateActiveCode
	}
	return err
}

func (r *AttendanceRepo) Get(ctx context.Context, sessionID uuid.UUID) (*attendance.Session, error) {
	s := &attendance.Session{}
	var state string
	query := `SELECT id, code, owner_id, label, state, created_at, expires_at
		FROM attendance_sessions WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&s.ID, &s.Code, &s.OwnerID, &s.Label, &state, &s.CreatedAt, &s.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, attendance.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.State = attendance.State(state)

	s.Redemptions, err = r.redemptions(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *AttendanceRepo) FindActiveByCode(ctx context.Context, code string, now time.Time) (*attendance.Session, error) {
	// Lazy expiry as a side effect of the read.
	r.expireStaleByCode(ctx, code, now)

	s := &attendance.Session{}
	var state string
	query := `SELECT id, code, owner_id, label, state, created_at, expires_at
		FROM attendance_sessions
		WHERE code = $1 AND state = 'active' AND expires_at > $2`

	err := r.pool.QueryRow(ctx, query, code, now).Scan(
		&s.ID, &s.Code, &s.OwnerID, &s.Label, &state, &s.CreatedAt, &s.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, attendance.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.State = attendance.State(state)
	s.Redemptions = []attendance.Redemption{}
	return s, nil
}

func (r *AttendanceRepo) TryRedeem(ctx context.Context, sessionID, attendeeID uuid.UUID, now time.Time) (attendance.RedeemStatus, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return attendance.SessionNotActive, err
	}
	defer tx.Rollback(ctx)

	// Lock the session row: this is the per-session serialization point.
	var state string
	var expiresAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT state, expires_at FROM attendance_sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionID).Scan(&state, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return attendance.SessionNotActive, attendance.ErrNotFound
	}
	if err != nil {
		return attendance.SessionNotActive, err
	}

	if state == string(attendance.StateActive) && !now.Before(expiresAt) {
		// Lazily expire under the same lock.
		if _, err := tx.Exec(ctx,
			"UPDATE attendance_sessions SET state = 'expired' WHERE id = $1", sessionID,
		); err != nil {
			return attendance.SessionNotActive, err
		}
		state = string(attendance.StateExpired)
	}

	if state != string(attendance.StateActive) {
		return attendance.SessionNotActive, tx.Commit(ctx)
	}

	// The primary key (session_id, attendee_id) makes the insert the
	// at-most-once check-and-set.
	tag, err := tx.Exec(ctx, `
		INSERT INTO attendance_redemptions (session_id, attendee_id, redeemed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, attendee_id) DO NOTHING
	`, sessionID, attendeeID, now)
	if err != nil {
		return attendance.SessionNotActive, err
	}

	status := attendance.Redeemed
	if tag.RowsAffected() == 0 {
		status = attendance.AlreadyRedeemed
	}
	return status, tx.Commit(ctx)
}

func (r *AttendanceRepo) CloseSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE attendance_sessions
		SET state = CASE WHEN expires_at <= $2 THEN 'expired' ELSE 'closed' END
		WHERE id = $1 AND state = 'active'
	`, sessionID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Already terminal or unknown. Closing a terminal session is a
		// no-op success; only a missing row is an error.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM attendance_sessions WHERE id = $1)", sessionID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return attendance.ErrNotFound
		}
	}
	return nil
}

func (r *AttendanceRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*attendance.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, owner_id, label, state, created_at, expires_at
		FROM attendance_sessions
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*attendance.Session
	for rows.Next() {
		s := &attendance.Session{}
		var state string
		if err := rows.Scan(&s.ID, &s.Code, &s.OwnerID, &s.Label, &state, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, err
		}
		s.State = attendance.State(state)
		s.Redemptions = []attendance.Redemption{}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, s := range sessions {
		s.Redemptions, err = r.redemptions(ctx, s.ID)
		if err != nil {
			return nil, err
		}
	}
	return sessions, nil
}

func (r *AttendanceRepo) PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM attendance_sessions
		WHERE state <> 'active' AND expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *AttendanceRepo) expireStaleByCode(ctx context.Context, code string, now time.Time) {
	r.pool.Exec(ctx, `
		UPDATE attendance_sessions
		SET state = 'expired'
		WHERE code = $1 AND state = 'active' AND expires_at <= $2
	`, code, now)
}

func (r *AttendanceRepo) redemptions(ctx context.Context, sessionID uuid.UUID) ([]attendance.Redemption, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT attendee_id, redeemed_at
		FROM attendance_redemptions
		WHERE session_id = $1
		ORDER BY redeemed_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	redemptions := []attendance.Redemption{}
	for rows.Next() {
		var red attendance.Redemption
		if err := rows.Scan(&red.AttendeeID, &red.RedeemedAt); err != nil {
			return nil, err
		}
		redemptions = append(redemptions, red)
	}
	return redemptions, rows.Err()
}
