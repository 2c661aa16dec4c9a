// cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/varkai/screenpilot/internal/config"
	"github.com/varkai/screenpilot/internal/observability"
)

// resetForTest clears the state one execution leaves for the next: the
// shared viper instance, the package flag vars and the global logger.
func resetForTest(t *testing.T) {
	t.Helper()
	viper.Reset()
	cfgFile = ""
	loadedConfig = nil
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
}

// execute runs the CLI with args against a fresh command tree and returns
// everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetForTest(t)

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// loginGraphJSON describes two pages: login, identified by a red marker
// pixel, and home, identified by a blue one. Clicking the login button
// moves to home.
const loginGraphJSON = `{
  "pages": {
    "login": {
      "id": "login",
      "name": "Login",
      "identifier_element_ids": ["login_button"],
      "interactive_element_ids": ["login_button"],
      "transitions": [{"element_id": "login_button", "target_page": "home"}]
    },
    "home": {
      "id": "home",
      "name": "Home",
      "identifier_element_ids": ["home_banner"]
    }
  },
  "elements": {
    "login_button": {
      "id": "login_button",
      "name": "login_button",
      "type": "pixel_color",
      "data": {"points_colors":[{"point":{"x":10,"y":10},"color":{"r":255,"g":0,"b":0},"tolerance":0}],"match_all":true}
    },
    "home_banner": {
      "id": "home_banner",
      "name": "home_banner",
      "type": "pixel_color",
      "data": {"points_colors":[{"point":{"x":20,"y":20},"color":{"r":0,"g":0,"b":255},"tolerance":0}],"match_all":true}
    }
  }
}`

var (
	redMark  = color.RGBA{R: 255, A: 255}
	blueMark = color.RGBA{B: 255, A: 255}
)

// writeFramesDir renders one 100x100 frame with the given pixels set and
// stores it as the only recording under a fresh directory.
func writeFramesDir(t *testing.T, marks map[image.Point]color.RGBA) string {
	t.Helper()
	frame := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for pt, c := range marks {
		frame.SetRGBA(pt.X, pt.Y, c)
	}

	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "frame_000.png"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, frame))
	return dir
}

func loginFramesDir(t *testing.T) string {
	t.Helper()
	return writeFramesDir(t, map[image.Point]color.RGBA{{X: 10, Y: 10}: redMark})
}
