package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesAny(t *testing.T) {
	assert.True(t, matchesAny([]string{"**/*.bin"}, "sub/dir/a.bin"))
	assert.True(t, matchesAny([]string{"*.txt", "**/*.bin"}, "a.bin"))
	assert.False(t, matchesAny([]string{"*.txt"}, "sub/dir/a.bin"))
	assert.False(t, matchesAny(nil, "a.bin"))
}

func TestWalkMatching_FiltersByIncludeAndExclude(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "keep"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "skip"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep", "a.bin"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip", "b.bin"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep", "c.txt"), []byte("c"), 0o644))

	matched, err := walkMatching(root, []string{"**/*.bin"}, []string{"skip/**"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, filepath.Join(root, "keep", "a.bin"), matched[0])
}

func TestWalkMatching_SortsResultsLexicographically(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"z.bin", "a.bin", "m.bin"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(name), 0o644))
	}

	matched, err := walkMatching(root, []string{"*.bin"}, nil)
	require.NoError(t, err)
	require.Len(t, matched, 3)
	assert.Equal(t, filepath.Join(root, "a.bin"), matched[0])
	assert.Equal(t, filepath.Join(root, "m.bin"), matched[1])
	assert.Equal(t, filepath.Join(root, "z.bin"), matched[2])
}

func TestWalkMatching_DefaultIncludeMatchesEverything(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "any.ext"), []byte("x"), 0o644))

	matched, err := walkMatching(root, []string{"**/*"}, nil)
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}
