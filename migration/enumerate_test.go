package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListCandidates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"bagac", "bagaa", "bagab", "README.md", ".hidden"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "bagadir"), 0755))

	names, err := ListCandidates(dir, "baga")
	require.NoError(t, err)
	require.Equal(t, []string{"bagaa", "bagab", "bagac"}, names)
}

func TestListCandidatesNoPrefix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "anything"), []byte("x"), 0644))

	names, err := ListCandidates(dir, "")
	require.NoError(t, err)
	require.Equal(t, []string{"anything"}, names)
}

func TestListCandidatesMissingDir(t *testing.T) {
	_, err := ListCandidates(filepath.Join(t.TempDir(), "nope"), "baga")
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestRemainingPreservesOrder(t *testing.T) {
	candidates := []string{"d", "b", "a", "c"}
	migrated := map[string]struct{}{"b": {}, "x": {}}

	require.Equal(t, []string{"d", "a", "c"}, Remaining(candidates, migrated))
	require.Empty(t, Remaining(nil, migrated))
	require.Equal(t, candidates, Remaining(candidates, nil))
}
