package id_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/id"
)

func TestNewRoundTrip(t *testing.T) {
	n := id.New(id.KindNode)
	assert.Equal(t, id.KindNode, n.Kind())
	assert.False(t, n.IsZero())

	text, err := n.MarshalText()
	require.NoError(t, err)

	var parsed id.ID
	require.NoError(t, parsed.UnmarshalText(text))
	assert.True(t, parsed.Equal(n))
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := id.Parse("bogus_123")
	require.Error(t, err)
}

func TestZeroValue(t *testing.T) {
	var z id.ID
	assert.True(t, z.IsZero())
	assert.Equal(t, id.Kind(""), z.Kind())

	v, err := z.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestScanString(t *testing.T) {
	var got id.ID
	require.NoError(t, got.Scan("ws_abc"))
	assert.Equal(t, id.KindWorkspace, got.Kind())

	require.NoError(t, got.Scan(nil))
	assert.True(t, got.IsZero())
}
