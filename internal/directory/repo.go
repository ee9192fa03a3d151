package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// ErrCourseNotFound is returned when a course id resolves to nothing.
var ErrCourseNotFound = errors.New("course not found")

// Repository persists directory data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CourseByID resolves a course by primary key.
func (r *Repository) CourseByID(ctx context.Context, id uuid.UUID) (Course, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, code, name, year, semester, lecturer_id
		FROM courses WHERE id = $1
	`, id)
	var course Course
	if err := row.Scan(&course.ID, &course.Code, &course.Name, &course.Year, &course.Semester, &course.LecturerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrCourseNotFound
		}
		return Course{}, err
	}
	return course, nil
}

// FindOrCreateCourse upserts a course row keyed by (code, lecturer, year,
// semester) and returns the surviving row. Concurrent calls for the same
// key resolve to one row; the DO UPDATE makes RETURNING yield it either way.
func (r *Repository) FindOrCreateCourse(ctx context.Context, key CourseKey) (Course, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO courses (id, code, name, year, semester, lecturer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code, lecturer_id, year, semester)
		DO UPDATE SET name = EXCLUDED.name
		RETURNING id, code, name, year, semester, lecturer_id
	`, uuid.New(), key.Code, key.Name, key.Year, key.Semester, key.LecturerID)
	var course Course
	if err := row.Scan(&course.ID, &course.Code, &course.Name, &course.Year, &course.Semester, &course.LecturerID); err != nil {
		return Course{}, err
	}
	return course, nil
}

// Teaches reports whether the lecturer declared (year, code, name) among
// their teaching assignments.
func (r *Repository) Teaches(ctx context.Context, lecturerID uuid.UUID, year int, code, name string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM teaching_assignments
			WHERE lecturer_id = $1 AND year = $2 AND course_code = $3 AND course_name = $4
		)
	`, lecturerID, year, code, name)
	var ok bool
	return ok, row.Scan(&ok)
}

// IsEnrolled reports roster membership of a student in a course.
func (r *Repository) IsEnrolled(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2
		)
	`, studentID, courseID)
	var ok bool
	return ok, row.Scan(&ok)
}

// Roster lists the students enrolled in a course, by student number.
func (r *Repository) Roster(ctx context.Context, courseID uuid.UUID) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.number
		FROM students s
		JOIN enrollments e ON e.student_id = s.id
		WHERE e.course_id = $1
		ORDER BY s.number
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Number); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
