// pkg/pagegraph/config.go

// Package pagegraph models the target application as a directed graph of
// pages connected by click transitions, detects which page a frame shows,
// finds paths between pages and drives the click-and-confirm navigation
// along them. The graph is owned by a single Manager; callers address pages
// and elements by id only.
//
// The package is not safe for concurrent use: all mutation must finish
// before detection or pathfinding queries run against the same Manager.
package pagegraph

import (
	"slices"

	"github.com/varkai/screenpilot/pkg/element"
)

// TransitionConfig is a directed edge: clicking the element moves the
// application to the target page. Confirmation elements are the signals
// polled for after the click; when empty, the target page's identifiers
// stand in.
type TransitionConfig struct {
	ElementID              string   `json:"element_id"`
	TargetPage             string   `json:"target_page"`
	ConfirmationElementIDs []string `json:"confirmation_element_ids,omitempty"`
}

func (t TransitionConfig) clone() TransitionConfig {
	t.ConfirmationElementIDs = slices.Clone(t.ConfirmationElementIDs)
	return t
}

// PageConfig describes one page: the elements whose visibility identifies
// it, the elements a workflow may interact with on it, and its outgoing
// transitions.
type PageConfig struct {
	ID                    string             `json:"id"`
	Name                  string             `json:"name"`
	IdentifierElementIDs  []string           `json:"identifier_element_ids,omitempty"`
	InteractiveElementIDs []string           `json:"interactive_element_ids,omitempty"`
	Transitions           []TransitionConfig `json:"transitions,omitempty"`
}

func (p PageConfig) clone() PageConfig {
	p.IdentifierElementIDs = slices.Clone(p.IdentifierElementIDs)
	p.InteractiveElementIDs = slices.Clone(p.InteractiveElementIDs)
	transitions := make([]TransitionConfig, 0, len(p.Transitions))
	for _, t := range p.Transitions {
		transitions = append(transitions, t.clone())
	}
	p.Transitions = transitions
	return p
}

// Document is the persisted form of a whole graph.
type Document struct {
	Pages    map[string]PageConfig     `json:"pages"`
	Elements map[string]element.Config `json:"elements"`
}
