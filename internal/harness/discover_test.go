package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScenarios(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	single := filepath.Join(t.TempDir(), "single.yaml")
	require.NoError(t, os.WriteFile(single, []byte("x"), 0644))

	files, err := ResolveScenarios([]string{single, dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		single,
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
	}, files)
}

func TestResolveScenarios_Missing(t *testing.T) {
	_, err := ResolveScenarios([]string{"/nonexistent/scenarios"})
	require.Error(t, err)

	var notFound *ScenarioNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "/nonexistent/scenarios", notFound.Path)
}
