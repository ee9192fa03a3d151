// Package session implements attendance-token issuance and redemption: a
// lecturer mints a short-lived session token for a course, enrolled students
// redeem it once each to be marked present.
package session

import (
	"time"

	"github.com/google/uuid"

	"campusattend/internal/directory"
)

// Session is one issued attendance token, scoped to a course and a calendar
// day. It stays active until superseded by a newer session for the same
// course/day, explicitly deleted, or a redemption attempt observes expiry.
// There is no background sweeper; every consumer checks ExpiresAt itself.
type Session struct {
	ID         uuid.UUID `json:"id"`
	CourseID   uuid.UUID `json:"course_id"`
	LecturerID uuid.UUID `json:"lecturer_id"`
	Date       time.Time `json:"date"`
	Token      string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsActive   bool      `json:"is_active"`
	ImagePath  string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Redemption records one student presenting a valid token. At most one
// exists per (session, student).
type Redemption struct {
	StudentID     uuid.UUID `json:"student_id"`
	StudentName   string    `json:"student_name"`
	StudentNumber string    `json:"student_number"`
	RedeemedAt    time.Time `json:"redeemed_at"`
}

// Summary is an owner-view row: a session plus its course and redemption
// count.
type Summary struct {
	Session
	CourseCode      string `json:"course_code"`
	CourseName      string `json:"course_name"`
	RedemptionCount int    `json:"redemption_count"`
}

// StudentView is a student-visible active session with a derived
// already-redeemed flag; the flag is computed, never stored.
type StudentView struct {
	ID              uuid.UUID `json:"id"`
	CourseID        uuid.UUID `json:"course_id"`
	CourseCode      string    `json:"course_code"`
	CourseName      string    `json:"course_name"`
	ExpiresAt       time.Time `json:"expires_at"`
	AlreadyRedeemed bool      `json:"already_redeemed"`
}

// Detail is the owner's view of a single session.
type Detail struct {
	Summary
	Redemptions []Redemption `json:"redemptions"`
}

// Attendance statuses. Redemption only ever writes StatusPresent; the
// others belong to the wider attendance subsystem.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

// AttendanceRecord is the day-scoped mark upserted on redemption, unique
// per (student, course, date). Re-writes for the same key only reaffirm
// the status.
type AttendanceRecord struct {
	StudentID uuid.UUID `json:"student_id"`
	CourseID  uuid.UUID `json:"course_id"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
	MarkedBy  uuid.UUID `json:"marked_by"`
}

// RollCallSheet is the input to the roll-call renderer: the session's
// course, day, and redemptions in stored order.
type RollCallSheet struct {
	Course      directory.Course
	Date        time.Time
	Redemptions []Redemption
}

// Day truncates t to midnight in t's location, the granularity sessions
// and attendance records are keyed by.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
