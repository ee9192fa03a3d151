package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueParse(t *testing.T) {
	const key, issuer = "test-key", "campus-gateway"
	subject := uuid.New()

	tok, err := Issue(subject.String(), RoleLecturer, issuer, key, time.Minute)
	require.NoError(t, err)

	claims, err := Parse(tok, key, issuer)
	require.NoError(t, err)
	assert.Equal(t, subject.String(), claims.Subject)
	assert.Equal(t, string(RoleLecturer), claims.Role)

	_, err = Parse(tok, "wrong-key", issuer)
	assert.Error(t, err)

	_, err = Parse(tok, key, "other-issuer")
	assert.Error(t, err)

	expired, err := Issue(subject.String(), RoleLecturer, issuer, key, -time.Minute)
	require.NoError(t, err)
	_, err = Parse(expired, key, issuer)
	assert.Error(t, err)
}

func TestActorCapabilities(t *testing.T) {
	lecturerID := uuid.New()

	tests := []struct {
		name                string
		actor               Actor
		canIssue, isStudent bool
		ownsOwn, ownsOther  bool
	}{
		{name: "student", actor: Actor{ID: uuid.New(), Role: RoleStudent}, isStudent: true},
		{name: "lecturer", actor: Actor{ID: lecturerID, Role: RoleLecturer}, canIssue: true, ownsOwn: true},
		{name: "admin", actor: Actor{ID: uuid.New(), Role: RoleAdmin}, canIssue: true, ownsOwn: true, ownsOther: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.canIssue, tt.actor.CanIssue())
			assert.Equal(t, tt.isStudent, tt.actor.IsStudent())
			assert.Equal(t, tt.ownsOwn, tt.actor.Owns(lecturerID))
			assert.Equal(t, tt.ownsOther, tt.actor.Owns(uuid.New()))
		})
	}
}

func TestActorFromClaims(t *testing.T) {
	id := uuid.New()

	actor, err := actorFromClaims(Claims{Subject: id.String(), Role: "lecturer"})
	require.NoError(t, err)
	assert.Equal(t, Actor{ID: id, Role: RoleLecturer}, actor)

	_, err = actorFromClaims(Claims{Subject: id.String(), Role: "superuser"})
	assert.Error(t, err)

	_, err = actorFromClaims(Claims{Subject: "not-a-uuid", Role: "student"})
	assert.Error(t, err)
}
