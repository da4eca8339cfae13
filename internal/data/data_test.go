package data

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewRepositories(filepath.Join(t.TempDir(), "guildwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}
