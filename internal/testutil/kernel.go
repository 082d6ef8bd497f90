package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vfaabeso/tea-simulation/internal/entity"
	"github.com/vfaabeso/tea-simulation/internal/kernel"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MustContainer creates a container or fails the test.
func MustContainer(t testing.TB, id string, opts ...entity.Option) *entity.Container {
	t.Helper()
	c, err := entity.NewContainer(id, opts...)
	require.NoError(t, err)
	return c
}

// MustCup creates a cup or fails the test.
func MustCup(t testing.TB, id string, opts ...entity.Option) *entity.Cup {
	t.Helper()
	c, err := entity.NewCup(id, opts...)
	require.NoError(t, err)
	return c
}

// MustTea creates a tea state or fails the test.
func MustTea(t testing.TB, id string, opts ...entity.TeaOption) *entity.TeaState {
	t.Helper()
	ts, err := entity.NewTeaState(id, opts...)
	require.NoError(t, err)
	return ts
}

// ConfirmedKernel returns a kernel with the given entities added and setup
// confirmed. The kernel logs to DiscardLogger unless opts set a logger.
func ConfirmedKernel(t testing.TB, entities []entity.Entity, opts ...kernel.Option) *kernel.Kernel {
	t.Helper()
	opts = append([]kernel.Option{kernel.WithLogger(DiscardLogger())}, opts...)
	k := kernel.New(opts...)
	require.NoError(t, k.AddEntities(entities...))
	require.NoError(t, k.ConfirmSetup())
	return k
}
