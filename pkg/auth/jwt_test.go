package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/humanplus/posture-console/internal/model"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	name := "Mario Rossi"

	token, err := svc.GenerateAccessToken(&model.User{UID: "op-1", Email: "m@clinic.it", DisplayName: &name})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.UID)
	assert.Equal(t, "m@clinic.it", claims.Email)
	assert.Equal(t, name, claims.DisplayName)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)
	token, err := svc.GenerateAccessToken(&model.User{UID: "op-1"})
	require.NoError(t, err)

	_, err = NewJWTService("other", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := &jwtService{secret: []byte("secret"), expiry: time.Hour, issuer: "posture-console", now: func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}}
	old, err := expired.GenerateAccessToken(&model.User{UID: "op-1"})
	require.NoError(t, err)
	_, err = svc.ValidateToken(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, model.TokenClaims{UID: "op-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
