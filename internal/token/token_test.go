package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/placementhub/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	signed, err := svc.Issue("STU001", types.RoleStudent)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	subject, role, err := svc.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "STU001", subject)
	assert.Equal(t, types.RoleStudent, role)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	signed, err := svc.Issue("STU001", types.RoleStudent)
	require.NoError(t, err)

	tampered := signed[:len(signed)-2] + "xx"
	_, _, err = svc.Verify(tampered)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	other := NewService("other-secret", time.Hour)
	signed, err := other.Issue("STU001", types.RoleStudent)
	require.NoError(t, err)

	svc := NewService("test-secret", time.Hour)
	_, _, err = svc.Verify(signed)
	assert.Error(t, err)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	now := time.Now().Add(-2 * time.Hour)
	claims := Claims{
		Role: types.RoleStudent.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "STU001",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, _, err = svc.Verify(signed)
	assert.Error(t, err)
}

func TestVerifyRejectsUnsignedToken(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	claims := Claims{
		Role: types.RoleAdmin.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ADM001",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, _, err = svc.Verify(unsigned)
	assert.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		_, _, err := svc.Verify(raw)
		assert.Error(t, err, raw)
	}
}

func TestVerifyRejectsMissingSubject(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	signed, err := svc.Issue("", types.RoleStudent)
	require.NoError(t, err)

	_, _, err = svc.Verify(signed)
	assert.Error(t, err)
}
