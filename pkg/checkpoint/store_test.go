package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/withdrawoor/pkg/withdrawals"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "checkpoints.db")

	store, err := NewStore(path)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close() //nolint:errcheck // cleanup
	})

	return store, path
}

func TestStore_MissingKind(t *testing.T) {
	store, _ := newTestStore(t)

	_, ok, err := store.LastProcessedBlock(withdrawals.CheckpointPartial)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.SetLastProcessedBlock(withdrawals.CheckpointPartial, 12345))

	block, ok, err := store.LastProcessedBlock(withdrawals.CheckpointPartial)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(12345), block)
}

func TestStore_NeverRegresses(t *testing.T) {
	// Writing an older block than the stored one is a no-op.
	store, _ := newTestStore(t)

	require.NoError(t, store.SetLastProcessedBlock(withdrawals.CheckpointCompleted, 100))
	require.NoError(t, store.SetLastProcessedBlock(withdrawals.CheckpointCompleted, 150))
	require.NoError(t, store.SetLastProcessedBlock(withdrawals.CheckpointCompleted, 120))

	block, ok, err := store.LastProcessedBlock(withdrawals.CheckpointCompleted)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(150), block)
}

func TestStore_KindsAreIndependent(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.SetLastProcessedBlock(withdrawals.CheckpointPartial, 10))
	require.NoError(t, store.SetLastProcessedBlock(withdrawals.CheckpointCompleted, 20))

	partial, _, err := store.LastProcessedBlock(withdrawals.CheckpointPartial)
	require.NoError(t, err)
	require.Equal(t, uint64(10), partial)

	completed, _, err := store.LastProcessedBlock(withdrawals.CheckpointCompleted)
	require.NoError(t, err)
	require.Equal(t, uint64(20), completed)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SetLastProcessedBlock(withdrawals.CheckpointPartial, 42))
	require.NoError(t, store.Close())

	store, err = NewStore(path)
	require.NoError(t, err)

	defer store.Close() //nolint:errcheck // cleanup

	block, ok, err := store.LastProcessedBlock(withdrawals.CheckpointPartial)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(42), block)
}
