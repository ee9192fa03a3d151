package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists session data in Postgres. Every invariant with a
// race window lives here as a constraint or a single statement: the token
// unique key, the one-UPDATE day-scoped deactivation, the
// (session, student) redemption key, and the attendance upsert.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const uniqueViolation = "23505"

// CreateSession deactivates all active sessions for (course, date) and
// inserts the new one in a single transaction, so the per-course-per-day
// single-active invariant holds the moment the call returns.
func (r *Repository) CreateSession(ctx context.Context, s Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET is_active = FALSE
		WHERE course_id = $1 AND session_date = $2 AND is_active
	`, s.CourseID, s.Date); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, course_id, lecturer_id, session_date, token, expires_at, is_active, image_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.CourseID, s.LecturerID, s.Date, s.Token, s.ExpiresAt, s.IsActive, s.ImagePath); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "sessions_token_key" {
			return ErrDuplicateToken
		}
		return err
	}
	return tx.Commit()
}

// SessionByToken returns the active session matching token exactly.
func (r *Repository) SessionByToken(ctx context.Context, token string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course_id, lecturer_id, session_date, token, expires_at, is_active, image_path, created_at
		FROM sessions WHERE token = $1 AND is_active
	`, token)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrInvalidToken
	}
	return s, err
}

// SessionByID returns a session in any state.
func (r *Repository) SessionByID(ctx context.Context, id uuid.UUID) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, course_id, lecturer_id, session_date, token, expires_at, is_active, image_path, created_at
		FROM sessions WHERE id = $1
	`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

// Deactivate flips a session inactive.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET is_active = FALSE WHERE id = $1`, id)
	return err
}

// InsertRedemption records (session, student) with ON CONFLICT DO NOTHING;
// zero rows affected means the student already redeemed. The unique key,
// not application logic, rejects the duplicate, so concurrent attempts by
// the same student cannot both land.
func (r *Repository) InsertRedemption(ctx context.Context, sessionID, studentID uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO session_redemptions (session_id, student_id, redeemed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, student_id) DO NOTHING
	`, sessionID, studentID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Redemptions lists a session's redemptions in redemption order.
func (r *Repository) Redemptions(ctx context.Context, sessionID uuid.UUID) ([]Redemption, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.student_id, s.name, s.number, r.redeemed_at
		FROM session_redemptions r
		JOIN students s ON s.id = r.student_id
		WHERE r.session_id = $1
		ORDER BY r.redeemed_at, s.number
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Redemption
	for rows.Next() {
		var red Redemption
		if err := rows.Scan(&red.StudentID, &red.StudentName, &red.StudentNumber, &red.RedeemedAt); err != nil {
			return nil, err
		}
		out = append(out, red)
	}
	return out, rows.Err()
}

// ListForOwner returns sessions newest first with redemption counts.
// Nil lecturerID means all lecturers (admin); nil courseID means all
// courses.
func (r *Repository) ListForOwner(ctx context.Context, lecturerID, courseID *uuid.UUID) ([]Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.course_id, s.lecturer_id, s.session_date, s.token, s.expires_at, s.is_active, s.image_path, s.created_at,
		       c.code, c.name, count(r.student_id)
		FROM sessions s
		JOIN courses c ON c.id = s.course_id
		LEFT JOIN session_redemptions r ON r.session_id = s.id
		WHERE ($1::uuid IS NULL OR s.lecturer_id = $1)
		  AND ($2::uuid IS NULL OR s.course_id = $2)
		GROUP BY s.id, c.code, c.name
		ORDER BY s.created_at DESC
	`, lecturerID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.CourseID, &sm.LecturerID, &sm.Date, &sm.Token, &sm.ExpiresAt, &sm.IsActive, &sm.ImagePath, &sm.CreatedAt,
			&sm.CourseCode, &sm.CourseName, &sm.RedemptionCount); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// ListActiveForStudent joins active, unexpired sessions against the
// student's enrollments; the enrolled-course filter runs in the query, not
// over the full active set in application code. The redeemed flag is
// derived per row.
func (r *Repository) ListActiveForStudent(ctx context.Context, studentID uuid.UUID, now time.Time) ([]StudentView, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.course_id, c.code, c.name, s.expires_at,
		       EXISTS (
		           SELECT 1 FROM session_redemptions r
		           WHERE r.session_id = s.id AND r.student_id = $1
		       )
		FROM sessions s
		JOIN courses c ON c.id = s.course_id
		JOIN enrollments e ON e.course_id = s.course_id AND e.student_id = $1
		WHERE s.is_active AND s.expires_at > $2
		ORDER BY s.expires_at
	`, studentID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StudentView
	for rows.Next() {
		var sv StudentView
		if err := rows.Scan(&sv.ID, &sv.CourseID, &sv.CourseCode, &sv.CourseName, &sv.ExpiresAt, &sv.AlreadyRedeemed); err != nil {
			return nil, err
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

// DeleteSession removes the row; redemptions cascade, attendance records
// do not.
func (r *Repository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// UpsertAttendance writes the day-scoped mark; the conflict path reaffirms
// it so concurrent or retried redemptions converge on the same row.
func (r *Repository) UpsertAttendance(ctx context.Context, rec AttendanceRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (student_id, course_id, att_date, status, marked_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, course_id, att_date)
		DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, marked_at = now()
	`, rec.StudentID, rec.CourseID, rec.Date, rec.Status, rec.MarkedBy)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.CourseID, &s.LecturerID, &s.Date, &s.Token, &s.ExpiresAt, &s.IsActive, &s.ImagePath, &s.CreatedAt)
	return s, err
}
