package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affinet/pkg/domain"
	"affinet/pkg/platform/sentinel"
	"affinet/pkg/requestcontext"
)

func TestInMemory_Clicks(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	upline := domain.UIN("5B1")

	n, err := s.Clicks(ctx, upline)
	require.NoError(t, err)
	assert.Zero(t, n, "unknown upline reads as zero, not an error")

	for i := int64(1); i <= 3; i++ {
		total, err := s.RecordClick(ctx, upline)
		require.NoError(t, err)
		assert.Equal(t, i, total)
	}

	n, err = s.Clicks(ctx, upline)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestInMemory_Bindings(t *testing.T) {
	s := NewInMemory()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	upline := domain.UIN("5B1")

	_, err := s.BoundUpline(ctx, "visitor-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.Bind(ctx, "visitor-1", upline, time.Hour))

	got, err := s.BoundUpline(ctx, "visitor-1")
	require.NoError(t, err)
	assert.Equal(t, upline, got)

	t.Run("last click wins", func(t *testing.T) {
		require.NoError(t, s.Bind(ctx, "visitor-1", domain.UIN("7C2"), time.Hour))
		got, err := s.BoundUpline(ctx, "visitor-1")
		require.NoError(t, err)
		assert.Equal(t, domain.UIN("7C2"), got)
	})

	t.Run("binding expires", func(t *testing.T) {
		later := requestcontext.WithTime(context.Background(), now.Add(2*time.Hour))
		_, err := s.BoundUpline(later, "visitor-1")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
