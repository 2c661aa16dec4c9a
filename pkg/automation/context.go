// pkg/automation/context.go
package automation

import (
	"image"
	"maps"

	"github.com/varkai/screenpilot/pkg/condition"
)

// Context is the per-run blackboard: the detected state tag, captured
// artifacts, collected data and step results. One workflow run owns exactly
// one Context; it is never shared across concurrent runs and is discarded
// when the run ends.
type Context struct {
	currentState string
	hasState     bool

	artifacts map[string]image.Image
	data      map[string]any

	results     map[string]Result
	resultOrder []string
}

var _ condition.StateReader = (*Context)(nil)

// NewContext constructs an empty blackboard.
func NewContext() *Context {
	return &Context{
		artifacts: make(map[string]image.Image),
		data:      make(map[string]any),
		results:   make(map[string]Result),
	}
}

// CurrentState implements condition.StateReader.
func (c *Context) CurrentState() (string, bool) {
	return c.currentState, c.hasState
}

// SetCurrentState records the detected state tag.
func (c *Context) SetCurrentState(tag string) {
	c.currentState = tag
	c.hasState = true
}

// ClearCurrentState forgets the state tag, e.g. after a scan found nothing.
func (c *Context) ClearCurrentState() {
	c.currentState = ""
	c.hasState = false
}

// AddData stores a collected value under a key, replacing any earlier value.
func (c *Context) AddData(key string, value any) {
	c.data[key] = value
}

// GetData returns a collected value.
func (c *Context) GetData(key string) (any, bool) {
	v, ok := c.data[key]
	return v, ok
}

// Data returns a copy of the collected-data map.
func (c *Context) Data() map[string]any {
	return maps.Clone(c.data)
}

// AddArtifact stores a captured image under a key.
func (c *Context) AddArtifact(key string, img image.Image) {
	c.artifacts[key] = img
}

// Artifact returns a captured image.
func (c *Context) Artifact(key string) (image.Image, bool) {
	img, ok := c.artifacts[key]
	return img, ok
}

// StepResult returns the recorded result for a step id.
func (c *Context) StepResult(stepID string) (Result, bool) {
	r, ok := c.results[stepID]
	return r, ok
}

// Results returns every recorded result in recording order.
func (c *Context) Results() []Result {
	out := make([]Result, 0, len(c.resultOrder))
	for _, id := range c.resultOrder {
		out = append(out, c.results[id])
	}
	return out
}

func (c *Context) recordResult(r Result) {
	if _, seen := c.results[r.StepID]; !seen {
		c.resultOrder = append(c.resultOrder, r.StepID)
	}
	c.results[r.StepID] = r
}
