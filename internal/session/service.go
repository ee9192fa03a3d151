package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"campusattend/internal/auth"
	"campusattend/internal/directory"
)

// Store persists sessions, redemptions and attendance records. Duplicate
// redemptions and day-scoped deactivation are the store's job: the
// implementations must be atomic, not read-then-write.
type Store interface {
	// CreateSession atomically deactivates every active session for the
	// same (course, date) and inserts s. Returns ErrDuplicateToken when
	// s.Token collides with an existing one.
	CreateSession(ctx context.Context, s Session) error
	// SessionByToken finds the active session for an exact token match;
	// ErrInvalidToken on miss.
	SessionByToken(ctx context.Context, token string) (Session, error)
	// SessionByID finds a session regardless of state; ErrNotFound on miss.
	SessionByID(ctx context.Context, id uuid.UUID) (Session, error)
	// Deactivate flips a session inactive. There is no way back.
	Deactivate(ctx context.Context, id uuid.UUID) error
	// InsertRedemption records (session, student) at most once and reports
	// whether this call inserted it. A false return is not an error.
	InsertRedemption(ctx context.Context, sessionID, studentID uuid.UUID, at time.Time) (bool, error)
	// Redemptions lists a session's redemptions in stored order with
	// roster identity attached.
	Redemptions(ctx context.Context, sessionID uuid.UUID) ([]Redemption, error)
	ListForOwner(ctx context.Context, lecturerID, courseID *uuid.UUID) ([]Summary, error)
	ListActiveForStudent(ctx context.Context, studentID uuid.UUID, now time.Time) ([]StudentView, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	// UpsertAttendance writes the (student, course, date) mark; repeat
	// writes for the same key reaffirm it.
	UpsertAttendance(ctx context.Context, rec AttendanceRecord) error
}

// ErrDuplicateToken is returned by Store.CreateSession on a token
// uniqueness violation so the issuer can regenerate.
var ErrDuplicateToken = errors.New("duplicate session token")

// Directory is the course/enrollment collaborator.
type Directory interface {
	CourseByID(ctx context.Context, id uuid.UUID) (directory.Course, error)
	FindOrCreateCourse(ctx context.Context, key directory.CourseKey) (directory.Course, error)
	Teaches(ctx context.Context, lecturerID uuid.UUID, year int, code, name string) (bool, error)
	IsEnrolled(ctx context.Context, studentID, courseID uuid.UUID) (bool, error)
}

// TokenEncoder turns an opaque token into an image (PNG).
type TokenEncoder interface {
	Encode(token string) ([]byte, error)
}

// RollCallRenderer turns a sheet into a binary document (PDF).
type RollCallRenderer interface {
	Render(sheet RollCallSheet) ([]byte, error)
}

// FileStore keeps artifact files under a content root.
type FileStore interface {
	Save(name string, data []byte) error
	Remove(name string) error
}

// Service coordinates issuance, redemption, views and lifecycle ops.
type Service struct {
	store  Store
	dir    Directory
	enc    TokenEncoder
	files  FileStore
	sheets RollCallRenderer
	log    *logrus.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates the service. defaultTTL bounds sessions whose issue
// request does not carry a duration.
func NewService(store Store, dir Directory, enc TokenEncoder, files FileStore, sheets RollCallRenderer, log *logrus.Logger, defaultTTL time.Duration) *Service {
	if defaultTTL <= 0 {
		defaultTTL = 60 * time.Minute
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:  store,
		dir:    dir,
		enc:    enc,
		files:  files,
		sheets: sheets,
		log:    log,
		ttl:    defaultTTL,
		now:    time.Now,
	}
}

// IssueInput selects the course either by id (owner/admin) or by the
// lecturer's declared teaching assignment. The two selectors are mutually
// exclusive.
type IssueInput struct {
	CourseID   *uuid.UUID
	Year       int
	Semester   string
	CourseCode string
	CourseName string
	Duration   time.Duration
}

// Issued is the result of minting a session.
type Issued struct {
	SessionID    uuid.UUID        `json:"session_id"`
	Token        string           `json:"token"`
	ExpiresAt    time.Time        `json:"expires_at"`
	Course       directory.Course `json:"course"`
	ArtifactPath string           `json:"artifact_path"`
}

// Issue mints a new session for a course, superseding any still-active
// session for the same course/day. The QR artifact is written before the
// session row so a render failure leaves no orphan row; an insert failure
// removes the file again.
func (s *Service) Issue(ctx context.Context, actor auth.Actor, in IssueInput) (Issued, error) {
	if !actor.CanIssue() {
		return Issued{}, forbiddenf("only lecturers and admins can issue sessions")
	}

	course, err := s.resolveCourse(ctx, actor, in)
	if err != nil {
		return Issued{}, err
	}

	duration := in.Duration
	if duration <= 0 {
		duration = s.ttl
	}
	now := s.now()
	sess := Session{
		ID:         uuid.New(),
		CourseID:   course.ID,
		LecturerID: course.LecturerID,
		Date:       Day(now),
		ExpiresAt:  now.Add(duration),
		IsActive:   true,
	}
	sess.ImagePath = sess.ID.String() + ".png"

	// Retry only covers the token-collision case; anything else is final.
	for attempt := 0; ; attempt++ {
		sess.Token, err = NewToken()
		if err != nil {
			return Issued{}, fmt.Errorf("generate token: %w", err)
		}
		png, err := s.enc.Encode(sess.Token)
		if err != nil {
			return Issued{}, artifactf(err)
		}
		if err := s.files.Save(sess.ImagePath, png); err != nil {
			return Issued{}, artifactf(err)
		}
		err = s.store.CreateSession(ctx, sess)
		if err == nil {
			break
		}
		if errors.Is(err, ErrDuplicateToken) && attempt < 2 {
			continue
		}
		if rmErr := s.files.Remove(sess.ImagePath); rmErr != nil {
			s.log.WithError(rmErr).WithField("session_id", sess.ID).Warn("could not remove artifact after failed insert")
		}
		return Issued{}, storagef(err)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"course":     course.Code,
		"expires_at": sess.ExpiresAt,
	}).Info("session issued")

	return Issued{
		SessionID:    sess.ID,
		Token:        sess.Token,
		ExpiresAt:    sess.ExpiresAt,
		Course:       course,
		ArtifactPath: sess.ImagePath,
	}, nil
}

func (s *Service) resolveCourse(ctx context.Context, actor auth.Actor, in IssueInput) (directory.Course, error) {
	hasSelector := in.CourseCode != "" || in.CourseName != "" || in.Year != 0 || in.Semester != ""
	switch {
	case in.CourseID != nil && hasSelector:
		return directory.Course{}, validationf("provide either course_id or a course selector, not both")
	case in.CourseID != nil:
		course, err := s.dir.CourseByID(ctx, *in.CourseID)
		if err != nil {
			if errors.Is(err, directory.ErrCourseNotFound) {
				return directory.Course{}, fmt.Errorf("%w: course", ErrNotFound)
			}
			return directory.Course{}, storagef(err)
		}
		if !actor.Owns(course.LecturerID) {
			return directory.Course{}, forbiddenf("course belongs to another lecturer")
		}
		return course, nil
	case hasSelector:
		if actor.Role != auth.RoleLecturer {
			return directory.Course{}, forbiddenf("course selector issuance is for lecturers; use course_id")
		}
		if in.CourseCode == "" || in.CourseName == "" || in.Semester == "" || in.Year == 0 {
			return directory.Course{}, validationf("year, semester, course_code and course_name are all required")
		}
		teaches, err := s.dir.Teaches(ctx, actor.ID, in.Year, in.CourseCode, in.CourseName)
		if err != nil {
			return directory.Course{}, storagef(err)
		}
		if !teaches {
			return directory.Course{}, forbiddenf("%s is not among your teaching assignments", in.CourseCode)
		}
		course, err := s.dir.FindOrCreateCourse(ctx, directory.CourseKey{
			Code:       in.CourseCode,
			Name:       in.CourseName,
			Year:       in.Year,
			Semester:   in.Semester,
			LecturerID: actor.ID,
		})
		if err != nil {
			return directory.Course{}, storagef(err)
		}
		return course, nil
	}
	return directory.Course{}, validationf("course_id or a course selector is required")
}

// Redeemed is the result of a successful redemption.
type Redeemed struct {
	Course directory.Course `json:"course"`
}

// Redeem validates a presented token and marks the caller present. The
// duplicate check is the store's atomic insert-if-absent, so two racing
// attempts by the same student cannot both record.
func (s *Service) Redeem(ctx context.Context, actor auth.Actor, token string) (Redeemed, error) {
	if token == "" {
		return Redeemed{}, validationf("token is required")
	}
	if !actor.IsStudent() {
		return Redeemed{}, forbiddenf("only students redeem session tokens")
	}

	sess, err := s.store.SessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return Redeemed{}, err
		}
		return Redeemed{}, storagef(err)
	}

	now := s.now()
	if now.After(sess.ExpiresAt) {
		// Lazy expiry: the first redemption attempt past the deadline
		// flips the flag.
		if err := s.store.Deactivate(ctx, sess.ID); err != nil {
			return Redeemed{}, storagef(err)
		}
		return Redeemed{}, ErrExpired
	}

	course, err := s.dir.CourseByID(ctx, sess.CourseID)
	if err != nil {
		return Redeemed{}, storagef(err)
	}
	enrolled, err := s.dir.IsEnrolled(ctx, actor.ID, sess.CourseID)
	if err != nil {
		return Redeemed{}, storagef(err)
	}
	if !enrolled {
		return Redeemed{}, forbiddenf("you are not enrolled in %s", course.Code)
	}

	inserted, err := s.store.InsertRedemption(ctx, sess.ID, actor.ID, now)
	if err != nil {
		return Redeemed{}, storagef(err)
	}
	if !inserted {
		return Redeemed{}, ErrAlreadyRedeemed
	}

	rec := AttendanceRecord{
		StudentID: actor.ID,
		CourseID:  sess.CourseID,
		Date:      Day(now),
		Status:    StatusPresent,
		MarkedBy:  sess.LecturerID,
	}
	if err := s.store.UpsertAttendance(ctx, rec); err != nil {
		return Redeemed{}, storagef(err)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"student_id": actor.ID,
		"course":     course.Code,
	}).Info("token redeemed")

	return Redeemed{Course: course}, nil
}

// ListForOwner lists the caller's sessions, newest first. Admins see all;
// lecturers only their own. An optional course filter narrows the result.
func (s *Service) ListForOwner(ctx context.Context, actor auth.Actor, courseID *uuid.UUID) ([]Summary, error) {
	if !actor.CanIssue() {
		return nil, forbiddenf("students use the active-sessions view")
	}
	var lecturerID *uuid.UUID
	if !actor.IsAdmin() {
		lecturerID = &actor.ID
	}
	out, err := s.store.ListForOwner(ctx, lecturerID, courseID)
	if err != nil {
		return nil, storagef(err)
	}
	return out, nil
}

// ListForStudent lists active, unexpired sessions for the caller's enrolled
// courses, each annotated with whether the caller already redeemed it.
func (s *Service) ListForStudent(ctx context.Context, actor auth.Actor) ([]StudentView, error) {
	if !actor.IsStudent() {
		return nil, forbiddenf("only students have an active-sessions view")
	}
	out, err := s.store.ListActiveForStudent(ctx, actor.ID, s.now())
	if err != nil {
		return nil, storagef(err)
	}
	return out, nil
}

// GetDetail returns a session with its redemption list; owner-gated.
func (s *Service) GetDetail(ctx context.Context, actor auth.Actor, id uuid.UUID) (Detail, error) {
	sess, course, err := s.ownedSession(ctx, actor, id)
	if err != nil {
		return Detail{}, err
	}
	reds, err := s.store.Redemptions(ctx, id)
	if err != nil {
		return Detail{}, storagef(err)
	}
	return Detail{
		Summary: Summary{
			Session:         sess,
			CourseCode:      course.Code,
			CourseName:      course.Name,
			RedemptionCount: len(reds),
		},
		Redemptions: reds,
	}, nil
}

// ArtifactPath authorizes download of a session's stored image and returns
// its path. The session must be active and unexpired, and the caller an
// enrolled student, the owning lecturer, or an admin.
func (s *Service) ArtifactPath(ctx context.Context, actor auth.Actor, id uuid.UUID) (string, error) {
	sess, err := s.store.SessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", err
		}
		return "", storagef(err)
	}
	if !sess.IsActive || s.now().After(sess.ExpiresAt) {
		return "", ErrExpired
	}
	switch {
	case actor.Owns(sess.LecturerID):
	case actor.IsStudent():
		enrolled, err := s.dir.IsEnrolled(ctx, actor.ID, sess.CourseID)
		if err != nil {
			return "", storagef(err)
		}
		if !enrolled {
			return "", forbiddenf("you are not enrolled in this course")
		}
	default:
		return "", forbiddenf("not your session")
	}
	return sess.ImagePath, nil
}

// ExportRollCall renders the session's redemptions as a document;
// owner-gated and deliberately independent of expiry so historical sheets
// stay exportable.
func (s *Service) ExportRollCall(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]byte, error) {
	sess, course, err := s.ownedSession(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	reds, err := s.store.Redemptions(ctx, id)
	if err != nil {
		return nil, storagef(err)
	}
	doc, err := s.sheets.Render(RollCallSheet{Course: course, Date: sess.Date, Redemptions: reds})
	if err != nil {
		return nil, artifactf(err)
	}
	return doc, nil
}

// Delete removes a session and its artifact file; owner-gated. Attendance
// records already created from it are left alone.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	sess, err := s.store.SessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return storagef(err)
	}
	if !actor.Owns(sess.LecturerID) {
		return forbiddenf("not your session")
	}
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return storagef(err)
	}
	if err := s.files.Remove(sess.ImagePath); err != nil {
		s.log.WithError(err).WithField("session_id", id).Warn("could not remove artifact file")
	}
	return nil
}

func (s *Service) ownedSession(ctx context.Context, actor auth.Actor, id uuid.UUID) (Session, directory.Course, error) {
	sess, err := s.store.SessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, directory.Course{}, err
		}
		return Session{}, directory.Course{}, storagef(err)
	}
	if !actor.Owns(sess.LecturerID) {
		return Session{}, directory.Course{}, forbiddenf("not your session")
	}
	course, err := s.dir.CourseByID(ctx, sess.CourseID)
	if err != nil {
		return Session{}, directory.Course{}, storagef(err)
	}
	return sess, course, nil
}
