// Package directory answers course and enrollment questions for the rest of
// the system: resolving courses, upserting a lecturer's declared teaching
// assignment into a course row, and checking roster membership.
package directory

import (
	"github.com/google/uuid"
)

// Course is one taught course instance.
type Course struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Year       int       `json:"year"`
	Semester   string    `json:"semester"`
	LecturerID uuid.UUID `json:"lecturer_id"`
}

// CourseKey identifies a course for find-or-create. The storage unique key
// on (code, lecturer, year, semester) makes the upsert idempotent under
// concurrent issuance.
type CourseKey struct {
	Code       string
	Name       string
	Year       int
	Semester   string
	LecturerID uuid.UUID
}

// Student is a roster entry.
type Student struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Number string    `json:"number"`
}
