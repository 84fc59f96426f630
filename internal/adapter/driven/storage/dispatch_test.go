package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDispatchesSQLiteInMemory(t *testing.T) {
	backend, err := Open(context.Background(), "sqlite:///:memory:")
	require.NoError(t, err)
	defer func() { _ = backend.Close() }()

	require.NoError(t, backend.EnsureSchema(context.Background()))
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "mysql://localhost/db")
	assert.Error(t, err)
}

func TestOpenRejectsMissingSQLitePath(t *testing.T) {
	_, err := Open(context.Background(), "sqlite:///")
	assert.Error(t, err)
}
