package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
)

func TestIssueAndVerify(t *testing.T) {
	svc := NewService("test-signing-key", "affinet", time.Hour)

	signed, err := svc.Issue(domain.UIN("12A34"), time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	upline, err := svc.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, domain.UIN("12A34"), upline)
}

func TestVerify_Rejections(t *testing.T) {
	svc := NewService("test-signing-key", "affinet", time.Hour)

	t.Run("expired token", func(t *testing.T) {
		signed, err := svc.Issue(domain.UIN("1A1"), time.Now().Add(-2*time.Hour))
		require.NoError(t, err)

		_, err = svc.Verify(signed)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewService("another-key", "affinet", time.Hour)
		signed, err := other.Issue(domain.UIN("1A1"), time.Now())
		require.NoError(t, err)

		_, err = svc.Verify(signed)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewService("test-signing-key", "someone-else", time.Hour)
		signed, err := other.Issue(domain.UIN("1A1"), time.Now())
		require.NoError(t, err)

		_, err = svc.Verify(signed)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := svc.Verify("not-a-token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("malformed upline claim", func(t *testing.T) {
		signed, err := svc.Issue(domain.UIN("not a uin"), time.Now())
		require.NoError(t, err)

		_, err = svc.Verify(signed)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed upline")
	})
}

func TestNewService_DefaultsTTL(t *testing.T) {
	svc := NewService("key", "affinet", 0)

	signed, err := svc.Issue(domain.UIN("1A1"), time.Now())
	require.NoError(t, err)
	_, err = svc.Verify(signed)
	assert.NoError(t, err, "zero ttl falls back to the default, not instant expiry")
}
