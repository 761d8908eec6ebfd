package registry_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laplaque/llmguard/internal/registry"
)

func TestInMemory_AddHasRemove(t *testing.T) {
	r := registry.New("get_weather")

	assert.True(t, r.Has("get_weather"))
	assert.False(t, r.Has("evil_shell"))

	require.NoError(t, r.Add("evil_shell"))
	assert.True(t, r.Has("evil_shell"))

	require.NoError(t, r.Remove("evil_shell"))
	assert.False(t, r.Has("evil_shell"))

	assert.Equal(t, []string{"get_weather"}, r.All())
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")

	r1, err := registry.Open(path, "get_weather")
	require.NoError(t, err)
	require.NoError(t, r1.Add("send_email"))
	require.NoError(t, r1.Close())

	r2, err := registry.Open(path)
	require.NoError(t, err)
	defer r2.Close()

	assert.True(t, r2.Has("get_weather"))
	assert.True(t, r2.Has("send_email"))
}

func TestOpen_EmptyPathIsInMemory(t *testing.T) {
	r, err := registry.Open("", "a", "b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, r.All())
	assert.NoError(t, r.Close())
}

func TestValidateArguments_MatchesHas(t *testing.T) {
	r := registry.New("get_weather")
	assert.True(t, r.ValidateArguments("get_weather", map[string]any{"city": "nyc"}))
	assert.False(t, r.ValidateArguments("evil_shell", nil))
}
