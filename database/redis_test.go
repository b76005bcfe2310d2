package database

import (
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeys(t *testing.T) {
	t.Run("Ключ справочника", func(t *testing.T) {
		assert.Equal(t, "choices:lead_source", ChoicesCacheKey("lead_source"))
	})

	t.Run("Ключ воронки по пользователю", func(t *testing.T) {
		assert.Equal(t, "pipeline:user:42", PipelineCacheKey(42))
	})
}

// Без подключения к Redis все операции кэша должны вырождаться в no-op,
// чтобы чтение воронки и справочников шло напрямую из БД
func TestCacheWithoutRedis(t *testing.T) {
	prev := Redis
	Redis = nil
	t.Cleanup(func() { Redis = prev })

	assert.False(t, CacheAvailable())

	t.Run("CacheGet возвращает промах", func(t *testing.T) {
		_, err := CacheGet(PipelineCacheKey(1))
		assert.ErrorIs(t, err, redis.Nil)
	})

	t.Run("CacheGetJSON возвращает промах", func(t *testing.T) {
		var dest map[string]int
		err := CacheGetJSON(PipelineCacheKey(1), &dest)
		assert.ErrorIs(t, err, redis.Nil)
		assert.Nil(t, dest)
	})

	t.Run("Запись и сброс не падают", func(t *testing.T) {
		require.NoError(t, CacheSetJSON(PipelineCacheKey(1), map[string]int{"New": 3}, time.Minute))
		require.NoError(t, CacheSet("key", "value", time.Minute))
		require.NoError(t, CacheDel("key"))
		require.NoError(t, ClearPipelineCache())
		require.NoError(t, ClearChoicesCache())
	})
}
