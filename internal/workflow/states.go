// internal/workflow/states.go
package workflow

import (
	"os"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/element"
	"github.com/varkai/screenpilot/pkg/pagegraph"
	"github.com/varkai/screenpilot/pkg/state"
	"github.com/varkai/screenpilot/pkg/types"
)

// StateConfig is the persisted form of one screen state: the elements that
// must be showing, the elements that must be gone, and an optional
// per-state confidence threshold.
type StateConfig struct {
	Tag       string   `json:"tag"`
	Required  []string `json:"required,omitempty"`
	Excluded  []string `json:"excluded,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
}

// StatesDocument is a whole screen-state file.
type StatesDocument struct {
	States []StateConfig `json:"states"`
}

// LoadStates reads and decodes the screen-state document at path.
func LoadStates(path string) (StatesDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StatesDocument{}, types.WrapError(types.CodeConfiguration, err, "reading states %s", path)
	}
	doc, err := DecodeStates(data)
	if err != nil {
		return StatesDocument{}, types.WrapError(types.CodeConfiguration, err, "states %s", path)
	}
	return doc, nil
}

// DecodeStates parses a screen-state document. Every state needs a unique
// non-empty tag, at least one element reference, and a threshold inside
// [0,1]; zero means "use the default".
func DecodeStates(data []byte) (StatesDocument, error) {
	var doc StatesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return StatesDocument{}, types.WrapError(types.CodeConfiguration, err, "malformed states document")
	}
	if len(doc.States) == 0 {
		return StatesDocument{}, types.NewError(types.CodeConfiguration, "states document declares no states")
	}

	seen := make(map[string]bool, len(doc.States))
	for i, s := range doc.States {
		if s.Tag == "" {
			return StatesDocument{}, types.NewError(types.CodeConfiguration, "state %d has no tag", i)
		}
		if seen[s.Tag] {
			return StatesDocument{}, types.NewError(types.CodeConfiguration, "duplicate state tag %q", s.Tag)
		}
		seen[s.Tag] = true
		if len(s.Required)+len(s.Excluded) == 0 {
			return StatesDocument{}, types.NewError(types.CodeConfiguration, "state %q references no elements", s.Tag)
		}
		if s.Threshold < 0 || s.Threshold > 1 {
			return StatesDocument{}, types.NewError(types.CodeConfiguration, "state %q threshold %v outside [0,1]", s.Tag, s.Threshold)
		}
	}
	return doc, nil
}

// BuildDetector resolves the document's element references through the
// graph and registers every state on a fresh detector. States without a
// threshold of their own use defaultThreshold.
func BuildDetector(graph *pagegraph.Manager, doc StatesDocument, defaultThreshold float64, logger *zap.Logger) (*state.Detector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	detector := state.NewDetector(logger)
	for _, sc := range doc.States {
		required, err := resolveElements(graph, sc.Tag, sc.Required)
		if err != nil {
			return nil, err
		}
		excluded, err := resolveElements(graph, sc.Tag, sc.Excluded)
		if err != nil {
			return nil, err
		}
		threshold := sc.Threshold
		if threshold == 0 {
			threshold = defaultThreshold
		}
		detector.Register(state.NewScreenState(sc.Tag, required, excluded, threshold, logger))
	}
	return detector, nil
}

func resolveElements(graph *pagegraph.Manager, tag string, ids []string) ([]element.Element, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	els := make([]element.Element, 0, len(ids))
	for _, id := range ids {
		el, err := graph.Element(id)
		if err != nil {
			return nil, types.WrapError(types.CodeConfiguration, err, "state %q", tag)
		}
		els = append(els, el)
	}
	return els, nil
}
