package membership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryOracleMembership(t *testing.T) {
	oracle := NewInMemoryOracle()
	ctx := context.Background()

	oracle.Add("study-42", "u1")

	member, err := oracle.IsMember(ctx, "u1", "study-42")
	require.NoError(t, err)
	assert.True(t, member)

	member, err = oracle.IsMember(ctx, "u2", "study-42")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestInMemoryOracleUnknownGroup(t *testing.T) {
	oracle := NewInMemoryOracle()

	member, err := oracle.IsMember(context.Background(), "u1", "no-such-group")
	require.NoError(t, err)
	assert.False(t, member)
}

func TestInMemoryOracleRemove(t *testing.T) {
	oracle := NewInMemoryOracle()
	ctx := context.Background()

	oracle.Add("study-42", "u1")
	oracle.Remove("study-42", "u1")

	member, err := oracle.IsMember(ctx, "u1", "study-42")
	require.NoError(t, err)
	assert.False(t, member)

	// Removing again must stay a no-op.
	oracle.Remove("study-42", "u1")
	oracle.Remove("no-such-group", "u1")
}
