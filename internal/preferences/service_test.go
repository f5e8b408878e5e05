package preferences

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisKV(client, "posture:")
}

func TestService_LoadMissingIsEmpty(t *testing.T) {
	s := NewService(NewMemoryKV(), nil)

	prefs := s.Load(context.Background(), "")

	assert.Nil(t, prefs.Language)
	assert.Nil(t, prefs.Notifications)
}

func TestService_LoadCorruptIsEmpty(t *testing.T) {
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), Key, "{not json"))
	s := NewService(kv, nil)

	prefs := s.Load(context.Background(), "")

	assert.Nil(t, prefs.Language)
	assert.Nil(t, prefs.Notifications)
}

func TestService_SetLanguagePreservesOtherFields(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, Key, `{"notifications":true,"theme":"dark"}`))
	s := NewService(kv, nil)

	prefs, err := s.SetLanguage(ctx, "", "en")
	require.NoError(t, err)
	require.NotNil(t, prefs.Language)
	assert.Equal(t, "en", *prefs.Language)
	require.NotNil(t, prefs.Notifications)
	assert.True(t, *prefs.Notifications)

	stored, ok, err := kv.Get(ctx, Key)
	require.NoError(t, err)
	require.True(t, ok)
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(stored), &raw))
	assert.Equal(t, map[string]any{"language": "en", "notifications": true, "theme": "dark"}, raw)
}

func TestService_SetNotificationsOverCorruptData(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, Key, "[]"))
	s := NewService(kv, nil)

	prefs, err := s.SetNotifications(ctx, "", false)
	require.NoError(t, err)
	require.NotNil(t, prefs.Notifications)
	assert.False(t, *prefs.Notifications)
	assert.Nil(t, prefs.Language)
}

func TestService_ScopedPerOperator(t *testing.T) {
	_, kv := setupRedis(t)
	s := NewService(kv, nil)
	ctx := context.Background()

	_, err := s.SetLanguage(ctx, "op-1", "it")
	require.NoError(t, err)

	assert.Equal(t, "it", *s.Load(ctx, "op-1").Language)
	assert.Nil(t, s.Load(ctx, "op-2").Language)
}

func TestRedisKV(t *testing.T) {
	mr, kv := setupRedis(t)
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "settings.pref")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "settings.pref", `{"language":"it"}`))
	v, err := mr.Get("posture:settings.pref")
	require.NoError(t, err)
	assert.Equal(t, `{"language":"it"}`, v)
}

func TestService_RedisUnavailableLoadsEmpty(t *testing.T) {
	mr, kv := setupRedis(t)
	mr.Close()
	s := NewService(kv, nil)

	prefs := s.Load(context.Background(), "op-1")
	assert.Nil(t, prefs.Language)

	_, err := s.SetLanguage(context.Background(), "op-1", "en")
	assert.Error(t, err)
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, "settings.pref", KeyFor(""))
	assert.Equal(t, "settings.pref:op-1", KeyFor("op-1"))
}
