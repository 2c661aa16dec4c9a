// internal/workflow/workflow.go

// Package workflow decodes the declarative documents the CLI consumes:
// workflow files listing executable steps and screen-state files describing
// detectable screens. Step envelopes carry a type tag and a tag-specific
// payload, decoded by an explicit per-variant decoder. Element references
// inside payloads are resolved against a page graph at build time.
package workflow

import (
	encodingjson "encoding/json"
	"os"

	json "github.com/json-iterator/go"

	"github.com/varkai/screenpilot/pkg/types"
)

// Step type tags.
const (
	TypeInteraction = "interaction"
	TypeWait        = "wait"
	TypeCollection  = "collection"
	TypeConditional = "conditional"
	TypeLoop        = "loop"
)

// Condition type tags.
const (
	CondWait    = "wait"
	CondElement = "element"
	CondState   = "state"
	CondAll     = "all"
	CondAny     = "any"
)

// Collector kind tags.
const (
	CollectText   = "text"
	CollectNumber = "number"
	CollectImage  = "image"
)

// StepConfig is the persisted form of one step: an id, a display name, a
// type tag and the tag-specific payload.
type StepConfig struct {
	ID   string                  `json:"id"`
	Name string                  `json:"name,omitempty"`
	Type string                  `json:"type"`
	Data encodingjson.RawMessage `json:"data"`
}

// ConditionConfig is the persisted form of one condition, shaped like
// StepConfig minus the identity fields.
type ConditionConfig struct {
	Type string                  `json:"type"`
	Data encodingjson.RawMessage `json:"data"`
}

// Document is a whole workflow file: an optional display name and the steps
// in execution order.
type Document struct {
	Name  string       `json:"name,omitempty"`
	Steps []StepConfig `json:"steps"`
}

// StepIDs returns the ids of the top-level steps in file order.
func (d Document) StepIDs() []string {
	ids := make([]string, 0, len(d.Steps))
	for _, s := range d.Steps {
		ids = append(ids, s.ID)
	}
	return ids
}

// Load reads and decodes the workflow document at path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, types.WrapError(types.CodeConfiguration, err, "reading workflow %s", path)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return Document{}, types.WrapError(types.CodeConfiguration, err, "workflow %s", path)
	}
	return doc, nil
}

// DecodeDocument parses a workflow document and validates its envelopes:
// every top-level step needs a unique non-empty id and a known type tag.
// Payloads are only checked when the document is built into steps.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, types.WrapError(types.CodeConfiguration, err, "malformed workflow document")
	}
	if len(doc.Steps) == 0 {
		return Document{}, types.NewError(types.CodeConfiguration, "workflow has no steps")
	}

	seen := make(map[string]bool, len(doc.Steps))
	for i, s := range doc.Steps {
		if s.ID == "" {
			return Document{}, types.NewError(types.CodeConfiguration, "step %d has no id", i)
		}
		if seen[s.ID] {
			return Document{}, types.NewError(types.CodeConfiguration, "duplicate step id %q", s.ID)
		}
		seen[s.ID] = true
		if _, ok := stepDecoders[s.Type]; !ok {
			return Document{}, types.NewError(types.CodeConfiguration, "step %q has unknown type %q", s.ID, s.Type)
		}
	}
	return doc, nil
}
