// cmd/history_test.go
package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varkai/screenpilot/pkg/types"
)

func TestHistoryRequiresDSN(t *testing.T) {
	t.Setenv("SCREENPILOT_HISTORY_DSN", "")

	_, err := execute(t, "history")
	require.Error(t, err)
	assert.Equal(t, types.CodeConfiguration, types.CodeOf(err))
	assert.Contains(t, err.Error(), "no history DSN configured")
}

func TestHistoryRejectsMalformedDSN(t *testing.T) {
	// pgxpool parses the DSN before dialing anything, so a malformed one
	// fails without a database around.
	_, err := execute(t, "history", "--history-dsn", "not a dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open database pool")
}
