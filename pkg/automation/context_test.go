// pkg/automation/context_test.go
package automation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextStateLifecycle(t *testing.T) {
	actx := NewContext()

	_, ok := actx.CurrentState()
	assert.False(t, ok)

	actx.SetCurrentState("login")
	tag, ok := actx.CurrentState()
	require.True(t, ok)
	assert.Equal(t, "login", tag)

	actx.ClearCurrentState()
	_, ok = actx.CurrentState()
	assert.False(t, ok)
}

func TestContextDataSnapshotIsACopy(t *testing.T) {
	actx := NewContext()
	actx.AddData("gold", 1200)

	snapshot := actx.Data()
	snapshot["gold"] = 0
	snapshot["injected"] = true

	v, ok := actx.GetData("gold")
	require.True(t, ok)
	assert.Equal(t, 1200, v)
	_, ok = actx.GetData("injected")
	assert.False(t, ok)
}

func TestContextDataReplacesOnSameKey(t *testing.T) {
	actx := NewContext()
	actx.AddData("hp", 50)
	actx.AddData("hp", 75)

	v, ok := actx.GetData("hp")
	require.True(t, ok)
	assert.Equal(t, 75, v)

	_, ok = actx.GetData("missing")
	assert.False(t, ok)
}

func TestContextArtifacts(t *testing.T) {
	actx := NewContext()
	frame := blankFrame()
	actx.AddArtifact("minimap", frame)

	got, ok := actx.Artifact("minimap")
	require.True(t, ok)
	assert.Same(t, frame, got)

	_, ok = actx.Artifact("missing")
	assert.False(t, ok)
}

func TestContextResultsKeepOrderAndLatestValue(t *testing.T) {
	actx := NewContext()
	at := time.Unix(1700000000, 0)

	actx.recordResult(finishResult("a", "first", at, at, 1, nil))
	actx.recordResult(finishResult("b", "second", at, at, 1, errors.New("boom")))
	actx.recordResult(finishResult("a", "first retried", at, at, 2, nil))

	results := actx.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].StepID)
	assert.Equal(t, "first retried", results[0].StepName)
	assert.Equal(t, 2, results[0].Attempts)
	assert.Equal(t, "b", results[1].StepID)

	r, ok := actx.StepResult("b")
	require.True(t, ok)
	assert.False(t, r.Succeeded())
	assert.Equal(t, "boom", r.ErrorMessage())

	_, ok = actx.StepResult("c")
	assert.False(t, ok)
}

func TestResultSucceededAndMessage(t *testing.T) {
	at := time.Unix(1700000000, 0)

	ok := finishResult("a", "a", at, at.Add(time.Second), 1, nil)
	assert.True(t, ok.Succeeded())
	assert.Empty(t, ok.ErrorMessage())
	assert.Equal(t, time.Second, ok.Duration)

	bad := finishResult("b", "b", at, at, 3, errors.New("did not work"))
	assert.False(t, bad.Succeeded())
	assert.Equal(t, "did not work", bad.ErrorMessage())
	assert.Equal(t, 3, bad.Attempts)
}
