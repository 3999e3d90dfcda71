package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitRepositoryDisabledFailsOpen(t *testing.T) {
	repo := NewRateLimitRepository(nil, nil)

	count, reset, err := repo.Hit(context.Background(), "1.2.3.4:/auth/login", time.Minute)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, reset)
	assert.False(t, repo.Enabled())
	assert.NoError(t, repo.Ping(context.Background()))
	assert.NoError(t, repo.Close())
}
