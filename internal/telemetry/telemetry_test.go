package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledInstallsNoop(t *testing.T) {
	require.NoError(t, Init(context.Background(), Config{}))
	assert.False(t, Enabled())

	ops := NewOps("", "duet.test")
	_, done := ops.Start(context.Background(), "noop")
	done(errors.New("ignored"))
	require.NoError(t, Shutdown(context.Background()))
}

func TestInitEnabledExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	require.NoError(t, Init(ctx, Config{Enabled: true, ServiceName: "duet-test", Writer: &buf}))
	assert.True(t, Enabled())

	ops := NewOps("", "duet.test")
	_, done := ops.Start(ctx, "create_task")
	done(nil)
	_, done = ops.Start(ctx, "delete_task")
	done(errors.New("task missing"))

	require.NoError(t, Shutdown(ctx))
	assert.False(t, Enabled())

	out := buf.String()
	assert.Contains(t, out, "duet.test.create_task")
	assert.Contains(t, out, "duet.test.delete_task")
	assert.Contains(t, out, "task missing")

	require.NoError(t, Init(ctx, Config{}))
}
