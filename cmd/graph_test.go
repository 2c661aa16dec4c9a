// cmd/graph_test.go
package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varkai/screenpilot/pkg/types"
)

func TestGraphValidate(t *testing.T) {
	t.Run("summarizes a well-formed graph", func(t *testing.T) {
		graphPath := writeFile(t, t.TempDir(), "graph.json", loginGraphJSON)

		out, err := execute(t, "graph", "validate", "--graph", graphPath)
		require.NoError(t, err)
		assert.Contains(t, out, "ok (2 pages, 2 elements)")
		assert.Contains(t, out, "login: 1 identifiers, 1 interactive, 1 transitions")
		assert.Contains(t, out, "home: 1 identifiers, 0 interactive, 0 transitions")
	})

	t.Run("rejects a dangling element reference", func(t *testing.T) {
		graphPath := writeFile(t, t.TempDir(), "graph.json",
			`{"pages":{"login":{"id":"login","identifier_element_ids":["ghost"]}},"elements":{}}`)

		_, err := execute(t, "graph", "validate", "--graph", graphPath)
		require.Error(t, err)
		assert.Equal(t, types.CodeConfiguration, types.CodeOf(err))
		assert.Contains(t, err.Error(), "ghost")
	})

	t.Run("requires the graph flag", func(t *testing.T) {
		_, err := execute(t, "graph", "validate")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "graph")
	})
}

func TestGraphPath(t *testing.T) {
	graphPath := writeFile(t, t.TempDir(), "graph.json", loginGraphJSON)

	t.Run("prints the hops along the shortest path", func(t *testing.T) {
		out, err := execute(t, "graph", "path", "--graph", graphPath, "--from", "login", "--to", "home")
		require.NoError(t, err)
		assert.Equal(t, "login -> home\n", out)
	})

	t.Run("reports unreachable targets", func(t *testing.T) {
		_, err := execute(t, "graph", "path", "--graph", graphPath, "--from", "home", "--to", "login")
		require.Error(t, err)
		assert.Equal(t, types.CodeConfiguration, types.CodeOf(err))
		assert.Contains(t, err.Error(), `no path from "home" to "login"`)
	})
}
