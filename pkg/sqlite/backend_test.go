package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/duet/pkg/types"
)

func TestNewBackendLifecycle(t *testing.T) {
	backend := NewBackend()

	_, err := backend.GetTable(types.TasksTable)
	assert.ErrorIs(t, err, types.ErrCupboardDetached)

	require.NoError(t, backend.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	err = backend.RunInTx(context.Background(), func(tx types.Tables) error {
		_, err := tx.GetTable(types.LogsTable)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, backend.Detach())
	assert.NoError(t, backend.Detach(), "detach is idempotent")
}
