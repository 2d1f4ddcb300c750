package memory

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/batonlabs/baton/pkg/config"
)

// sqliteConfig points the SQL backend at a throwaway database file.
func sqliteConfig(t *testing.T) *config.DatabaseConfig {
	t.Helper()
	return &config.DatabaseConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "turns.db"),
	}
}

// TestSQLRepository_FromConfigRoundTrip drives a conversation-shaped
// flow through the config-built repository: schema creation on first
// open, writes, and every read path.
func TestSQLRepository_FromConfigRoundTrip(t *testing.T) {
	repo, err := NewSQLRepositoryFromConfig(sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, repo.SaveTurn("orchestrator", RoleUser, "list the repo files", nil))
	require.NoError(t, repo.SaveTurn("orchestrator", RoleAssistant, "done: three files", map[string]any{
		"task":  "t1",
		"turns": 3,
	}))

	history, err := repo.History("orchestrator", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "list the repo files", history[0].Content)
	assert.Equal(t, RoleAssistant, history[1].Role)

	// Metadata travels through a JSON column, so numbers come back as
	// float64.
	assert.Equal(t, "t1", history[1].Metadata["task"])
	assert.Equal(t, float64(3), history[1].Metadata["turns"])

	last, ok, err := repo.LastTurn("orchestrator")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "done: three files", last.Content)

	count, err := repo.TurnCount("orchestrator")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	exists, err := repo.Exists("orchestrator")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists("nobody")
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestSQLRepository_PersistsAcrossReopen is the point of the SQL
// backend: turns written by one process are there for the next one,
// and sequence numbering picks up where it stopped.
func TestSQLRepository_PersistsAcrossReopen(t *testing.T) {
	cfg := sqliteConfig(t)

	repo, err := NewSQLRepositoryFromConfig(cfg)
	require.NoError(t, err)
	require.NoError(t, repo.SaveTurn("agent-1", RoleUser, "before restart", nil))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLRepositoryFromConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	history, err := reopened.History("agent-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "before restart", history[0].Content)

	require.NoError(t, reopened.SaveTurn("agent-1", RoleAssistant, "after restart", nil))

	history, err = reopened.History("agent-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "before restart", history[0].Content)
	assert.Equal(t, "after restart", history[1].Content)
}

// TestSQLRepository_ConcurrentAppends checks that the writer lock keeps
// interleaved saves from colliding on sequence numbers: every turn
// written lands in the history exactly once.
func TestSQLRepository_ConcurrentAppends(t *testing.T) {
	repo, err := NewSQLRepositoryFromConfig(sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	const (
		writers        = 4
		turnsPerWriter = 10
	)

	errs := make(chan error, writers*turnsPerWriter)
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < turnsPerWriter; i++ {
				errs <- repo.SaveTurn("agent-1", RoleUser, fmt.Sprintf("writer-%d-turn-%d", w, i), nil)
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	history, err := repo.History("agent-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, writers*turnsPerWriter)

	count, err := repo.TurnCount("agent-1")
	require.NoError(t, err)
	assert.Equal(t, writers*turnsPerWriter, count)
}

func TestSQLRepository_FromConfigErrors(t *testing.T) {
	_, err := NewSQLRepositoryFromConfig(nil)
	require.Error(t, err)

	_, err = NewSQLRepositoryFromConfig(&config.DatabaseConfig{
		Driver:   "oracle",
		Database: "turns",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestNewSQLRepository_RejectsUnknownDialect(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "turns.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = NewSQLRepository(db, "oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dialect")
}
