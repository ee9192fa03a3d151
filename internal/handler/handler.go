// Package handler exposes the session service over HTTP.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"campusattend/internal/artifact"
	"campusattend/internal/auth"
	"campusattend/internal/metrics"
	"campusattend/internal/session"
)

// Handler holds the wired dependencies for the session endpoints.
type Handler struct {
	sessions *session.Service
	files    *artifact.FileStore
	log      *logrus.Logger
}

// New creates a handler.
func New(sessions *session.Service, files *artifact.FileStore, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{sessions: sessions, files: files, log: log}
}

// Register mounts the session routes on an authenticated group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/sessions", h.Issue)
	g.GET("/sessions", h.ListForOwner)
	g.GET("/active-sessions", h.ListForStudent)
	g.GET("/sessions/:id", h.GetDetail)
	g.GET("/sessions/:id/image", h.DownloadArtifact)
	g.GET("/sessions/:id/rollcall", h.ExportRollCall)
	g.DELETE("/sessions/:id", h.Delete)
	g.POST("/redemptions", h.Redeem)
}

type issueRequest struct {
	CourseID        string `json:"course_id"`
	Year            int    `json:"year"`
	Semester        string `json:"semester"`
	CourseCode      string `json:"course_code"`
	CourseName      string `json:"course_name"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Issue mints a new attendance session.
func (h *Handler) Issue(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in := session.IssueInput{
		Year:       req.Year,
		Semester:   req.Semester,
		CourseCode: req.CourseCode,
		CourseName: req.CourseName,
		Duration:   time.Duration(req.DurationMinutes) * time.Minute,
	}
	if req.CourseID != "" {
		id, err := uuid.Parse(req.CourseID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course_id"})
			return
		}
		in.CourseID = &id
	}

	issued, err := h.sessions.Issue(c.Request.Context(), actor, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	metrics.SessionsIssued.Inc()
	c.JSON(http.StatusCreated, issued)
}

type redeemRequest struct {
	Token string `json:"token" binding:"required"`
}

// Redeem marks the caller present for the session behind the token.
func (h *Handler) Redeem(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	redeemed, err := h.sessions.Redeem(c.Request.Context(), actor, req.Token)
	if err != nil {
		metrics.Redemptions.WithLabelValues(redemptionOutcome(err)).Inc()
		h.fail(c, err)
		return
	}
	metrics.Redemptions.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"message": "attendance recorded for " + redeemed.Course.Code,
		"course":  redeemed.Course,
	})
}

// ListForOwner lists the caller's sessions (admin: all), newest first.
func (h *Handler) ListForOwner(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}
	var courseID *uuid.UUID
	if v := c.Query("course_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course_id"})
			return
		}
		courseID = &id
	}
	sessions, err := h.sessions.ListForOwner(c.Request.Context(), actor, courseID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// ListForStudent lists active sessions for the caller's enrolled courses.
func (h *Handler) ListForStudent(c *gin.Context) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return
	}
	sessions, err := h.sessions.ListForStudent(c.Request.Context(), actor)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetDetail returns one session with its redemptions.
func (h *Handler) GetDetail(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	detail, err := h.sessions.GetDetail(c.Request.Context(), actor, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// DownloadArtifact serves the session's QR image.
func (h *Handler) DownloadArtifact(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	name, err := h.sessions.ArtifactPath(c.Request.Context(), actor, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	path, err := h.files.Abs(name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Type", "image/png")
	c.File(path)
}

// ExportRollCall serves the roll-call PDF for a session.
func (h *Handler) ExportRollCall(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	doc, err := h.sessions.ExportRollCall(c.Request.Context(), actor, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="rollcall-`+id.String()+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", doc)
}

// Delete removes a session and its artifact.
func (h *Handler) Delete(c *gin.Context) {
	actor, id, ok := h.actorAndID(c)
	if !ok {
		return
	}
	if err := h.sessions.Delete(c.Request.Context(), actor, id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}

func (h *Handler) actorAndID(c *gin.Context) (auth.Actor, uuid.UUID, bool) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no identity"})
		return auth.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return auth.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

// fail maps a domain error to an HTTP status with one human-readable
// message. Unknown errors are logged and masked.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidToken):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, session.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, session.ErrAlreadyRedeemed):
		status = http.StatusConflict
	case errors.Is(err, session.ErrArtifact):
		status = http.StatusBadGateway
	case errors.Is(err, artifact.ErrBadName):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func redemptionOutcome(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, session.ErrExpired):
		return "expired"
	case errors.Is(err, session.ErrForbidden):
		return "forbidden"
	case errors.Is(err, session.ErrAlreadyRedeemed):
		return "already_redeemed"
	default:
		return "error"
	}
}
