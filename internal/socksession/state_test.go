package socksession_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workspace-engine/core/internal/socksession"
)

func TestStateValueMatchesDeclarationOrder(t *testing.T) {
	require.Equal(t, float64(0), socksession.Idle.Value())
	require.Equal(t, float64(1), socksession.Connecting.Value())
	require.Equal(t, float64(2), socksession.Open.Value())
	require.Equal(t, float64(3), socksession.Closing.Value())
	require.Equal(t, float64(4), socksession.Closed.Value())
}
