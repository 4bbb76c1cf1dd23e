package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	cause := errors.New("disk failure")
	err := WrapError("node read failed", cause)
	require.EqualError(t, err, "node read failed: disk failure")
	require.ErrorIs(t, err, cause)
}

func TestWrapErrorNil(t *testing.T) {
	require.NoError(t, WrapError("anything", nil))
}

func TestCorruptSentinel(t *testing.T) {
	err := Corruptf("node %d cell count exceeds capacity", 7)
	require.ErrorIs(t, err, ErrCorrupt)
	require.Contains(t, err.Error(), "node 7")
}

func TestConstraintSentinel(t *testing.T) {
	err := Constraint("coordinate range is inverted")
	require.ErrorIs(t, err, ErrConstraint)
	require.NotErrorIs(t, err, ErrCorrupt)
}
