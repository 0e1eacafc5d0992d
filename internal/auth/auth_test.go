package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyAndValidate(t *testing.T) {
	gate := NewGate([]string{"kouame", " arrow ", ""}, "secret", time.Hour)

	token, err := gate.Verify("arrow")
	require.NoError(t, err)
	assert.NoError(t, gate.Validate(token))

	tests := []struct {
		name     string
		password string
	}{
		{name: "empty", password: ""},
		{name: "wrong", password: "celestin"},
		{name: "case sensitive", password: "Kouame"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gate.Verify(tt.password)
			assert.ErrorIs(t, err, ErrInvalidPassword)
		})
	}
}

func TestValidateRejectsBadTokens(t *testing.T) {
	gate := NewGate([]string{"kouame"}, "secret", time.Hour)
	other := NewGate([]string{"kouame"}, "another-secret", time.Hour)

	forged, err := other.Verify("kouame")
	require.NoError(t, err)

	expiredGate := NewGate([]string{"kouame"}, "secret", time.Hour)
	expiredGate.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredGate.Verify("kouame")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.token"},
		{name: "wrong secret", token: forged},
		{name: "expired", token: expired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, gate.Validate(tt.token), ErrInvalidToken)
		})
	}
}
