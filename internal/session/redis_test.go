package session

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRedisStorage_Integration поднимает Redis в контейнере.
// Запускается только при TEST_INTEGRATION=1.
func TestRedisStorage_Integration(t *testing.T) {
	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("TEST_INTEGRATION не задан")
	}

	ctx := t.Context()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := NewRedisClient(RedisConfig{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	status, _ := NewRedisReadinessChecker(client).CheckReady()
	assert.Equal(t, "ok", status)

	s := NewRedisStorage(client, "sid-1", time.Minute)
	store := NewStore("sid-1", s, nil, discard)
	require.NoError(t, store.Login(ctx, "T", "R", adminProfile()))

	ttl, err := client.TTL(ctx, "sc:session:sid-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	restored := NewStore("sid-1", NewRedisStorage(client, "sid-1", time.Minute), nil, discard)
	require.NoError(t, restored.Hydrate(ctx))
	assert.True(t, restored.Authenticated())

	require.NoError(t, restored.Logout(ctx))
	_, ok, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}
