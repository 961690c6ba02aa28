package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// User tests
func TestNewUser(t *testing.T) {
	user := NewUser("  Alice ", "  Alice@Example.COM ", "$2a$12$hash")

	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "$2a$12$hash", user.PasswordHash)
	assert.Equal(t, RoleStandard, user.Role)
	assert.True(t, user.Active)
	assert.False(t, user.CreatedAt.IsZero())
	assert.Equal(t, user.CreatedAt, user.UpdatedAt)
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "alice@example.com"},
		{"ALICE@EXAMPLE.COM", "alice@example.com"},
		{"\t bob@Example.org \n", "bob@example.org"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmail(tt.in))
		})
	}
}

func TestUserRole_Valid(t *testing.T) {
	assert.True(t, RoleStandard.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, UserRole("member").Valid())
	assert.False(t, UserRole("").Valid())
}

func TestUser_CanAuthenticate(t *testing.T) {
	user := NewUser("a", "a@example.com", "h")
	assert.True(t, user.CanAuthenticate())

	user.Active = false
	assert.False(t, user.CanAuthenticate())
}

func TestUser_JSONOmitsPasswordHash(t *testing.T) {
	user := NewUser("Alice", "alice@example.com", "super-secret-hash")

	data, err := json.Marshal(user)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "super-secret-hash")
	assert.NotContains(t, string(data), "password")
	assert.Contains(t, string(data), `"email":"alice@example.com"`)
}

func TestUser_Public(t *testing.T) {
	user := NewUser("Alice", "alice@example.com", "hash")
	pub := user.Public()

	assert.Equal(t, user.ID, pub.ID)
	assert.Equal(t, "Alice", pub.Name)
	assert.Equal(t, "alice@example.com", pub.Email)

	data, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "role")
	assert.NotContains(t, string(data), "hash")
}

// AuditLog tests
func TestNewAuditLog(t *testing.T) {
	log := NewAuditLog(AuditActionLoginFailure)

	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.Equal(t, AuditActionLoginFailure, log.Action)
	assert.Nil(t, log.UserID)
	assert.False(t, log.Timestamp.IsZero())
}

func TestAuditLog_BuilderMethods(t *testing.T) {
	userID := uuid.New()
	actorID := uuid.New()

	log := NewAuditLog(AuditActionUserUpdated).
		WithUser(userID).
		WithActor(actorID).
		WithEmail("alice@example.com").
		WithRequest("req-1", "10.0.0.1", "curl/8.0").
		WithDetails(map[string]interface{}{"active": false})

	require.NotNil(t, log.UserID)
	assert.Equal(t, userID, *log.UserID)
	require.NotNil(t, log.ActorID)
	assert.Equal(t, actorID, *log.ActorID)
	assert.Equal(t, "alice@example.com", log.Email)
	assert.Equal(t, "req-1", log.RequestID)
	assert.Equal(t, "10.0.0.1", log.IPAddress)
	assert.Equal(t, "curl/8.0", log.UserAgent)
	assert.JSONEq(t, `{"active":false}`, string(log.Details))
}
