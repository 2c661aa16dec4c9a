// pkg/pagegraph/manager.go
package pagegraph

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/element"
	"github.com/varkai/screenpilot/pkg/types"
)

// uuidNewString is swapped out in tests for deterministic ids.
var uuidNewString = uuid.NewString

// Manager owns one page graph: the page configs, the element config arena
// and the runtime elements materialized from it. Mutation methods panic on
// references to unknown ids; that is a programming error in the embedding
// code, not a runtime condition. Everything loaded from disk is validated
// with ordinary errors instead (see Load).
type Manager struct {
	pages     map[string]PageConfig
	pageOrder []string
	elements  map[string]element.Config
	runtime   map[string]element.Element
	decode    element.DecodeOptions
	logger    *zap.Logger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithMatcher wires the template matcher that materialized image elements
// will use.
func WithMatcher(m element.TemplateMatcher) ManagerOption {
	return func(g *Manager) {
		g.decode.Matcher = m
	}
}

// NewManager constructs an empty graph manager.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Manager{
		pages:    make(map[string]PageConfig),
		elements: make(map[string]element.Config),
		runtime:  make(map[string]element.Element),
		logger:   logger.Named("pagegraph"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// -- Mutation --

// AddElement registers an element config in the arena and returns its id,
// generating one when the config has none. It panics on a duplicate id or
// an unknown type tag.
func (g *Manager) AddElement(cfg element.Config) string {
	if cfg.ID == "" {
		cfg.ID = uuidNewString()
	}
	if _, exists := g.elements[cfg.ID]; exists {
		panic(fmt.Sprintf("pagegraph: duplicate element id %q", cfg.ID))
	}
	if cfg.Type != element.TypeImage && cfg.Type != element.TypePixelColor {
		panic(fmt.Sprintf("pagegraph: element %q has unknown type %q", cfg.ID, cfg.Type))
	}
	g.elements[cfg.ID] = cfg
	return cfg.ID
}

// AddPage registers a page. Identifier and interactive ids must already be
// in the element arena; transitions carried in the config are validated the
// same way AddTransition validates them. Panics on violations.
func (g *Manager) AddPage(cfg PageConfig) {
	if cfg.ID == "" {
		panic("pagegraph: page id must not be empty")
	}
	if _, exists := g.pages[cfg.ID]; exists {
		panic(fmt.Sprintf("pagegraph: duplicate page id %q", cfg.ID))
	}
	for _, id := range cfg.IdentifierElementIDs {
		g.mustHaveElement(id, "identifier of page "+cfg.ID)
	}
	for _, id := range cfg.InteractiveElementIDs {
		g.mustHaveElement(id, "interactive element of page "+cfg.ID)
	}
	transitions := cfg.Transitions
	cfg.Transitions = nil
	g.pages[cfg.ID] = cfg.clone()
	g.pageOrder = append(g.pageOrder, cfg.ID)
	for _, t := range transitions {
		g.AddTransition(cfg.ID, t)
	}
}

// AddPageIdentifier adds an element to a page's identifier set. Panics on
// unknown ids; adding an id twice is a no-op.
func (g *Manager) AddPageIdentifier(pageID, elementID string) {
	page := g.mustPage(pageID)
	g.mustHaveElement(elementID, "identifier of page "+pageID)
	if !slices.Contains(page.IdentifierElementIDs, elementID) {
		page.IdentifierElementIDs = append(page.IdentifierElementIDs, elementID)
		g.pages[pageID] = page
	}
}

// AddInteractiveElement adds an element to a page's interactive set. Panics
// on unknown ids; adding an id twice is a no-op.
func (g *Manager) AddInteractiveElement(pageID, elementID string) {
	page := g.mustPage(pageID)
	g.mustHaveElement(elementID, "interactive element of page "+pageID)
	if !slices.Contains(page.InteractiveElementIDs, elementID) {
		page.InteractiveElementIDs = append(page.InteractiveElementIDs, elementID)
		g.pages[pageID] = page
	}
}

// AddTransition adds a directed edge from pageID. The click element, target
// page and every confirmation element must already exist. Panics on
// violations.
func (g *Manager) AddTransition(pageID string, t TransitionConfig) {
	page := g.mustPage(pageID)
	g.mustHaveElement(t.ElementID, "transition element of page "+pageID)
	if _, ok := g.pages[t.TargetPage]; !ok {
		panic(fmt.Sprintf("pagegraph: transition from %q targets unknown page %q", pageID, t.TargetPage))
	}
	for _, id := range t.ConfirmationElementIDs {
		g.mustHaveElement(id, fmt.Sprintf("confirmation of transition %s->%s", pageID, t.TargetPage))
	}
	page.Transitions = append(page.Transitions, t.clone())
	g.pages[pageID] = page
}

func (g *Manager) mustPage(pageID string) PageConfig {
	page, ok := g.pages[pageID]
	if !ok {
		panic(fmt.Sprintf("pagegraph: unknown page id %q", pageID))
	}
	return page
}

func (g *Manager) mustHaveElement(elementID, role string) {
	if _, ok := g.elements[elementID]; !ok {
		panic(fmt.Sprintf("pagegraph: unknown element id %q referenced as %s", elementID, role))
	}
}

// -- Queries --

// Page returns a copy of a page config.
func (g *Manager) Page(pageID string) (PageConfig, bool) {
	page, ok := g.pages[pageID]
	if !ok {
		return PageConfig{}, false
	}
	return page.clone(), true
}

// Pages returns every page id in registration order.
func (g *Manager) Pages() []string {
	return slices.Clone(g.pageOrder)
}

// ElementIDs returns every element id in the arena, sorted.
func (g *Manager) ElementIDs() []string {
	ids := make([]string, 0, len(g.elements))
	for id := range g.elements {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ElementConfig returns a copy of an element's persisted form.
func (g *Manager) ElementConfig(elementID string) (element.Config, bool) {
	cfg, ok := g.elements[elementID]
	if !ok {
		return element.Config{}, false
	}
	cfg.Data = slices.Clone(cfg.Data)
	return cfg, true
}

// Element materializes the runtime element for an id, caching it for later
// calls. The cache is the only holder of runtime elements; callers must not
// retain them across graph mutations.
func (g *Manager) Element(elementID string) (element.Element, error) {
	if el, ok := g.runtime[elementID]; ok {
		return el, nil
	}
	cfg, ok := g.elements[elementID]
	if !ok {
		return nil, types.NewError(types.CodeConfiguration, "unknown element id %q", elementID)
	}
	el, err := element.Decode(cfg, g.logger, g.decode)
	if err != nil {
		return nil, err
	}
	g.runtime[elementID] = el
	return el, nil
}

// Transition returns the first direct edge from one page to another.
func (g *Manager) Transition(from, to string) (TransitionConfig, bool) {
	page, ok := g.pages[from]
	if !ok {
		return TransitionConfig{}, false
	}
	for _, t := range page.Transitions {
		if t.TargetPage == to {
			return t.clone(), true
		}
	}
	return TransitionConfig{}, false
}

// FindPath runs a breadth-first search over the transition edges and
// returns the shortest page-id sequence from one page to another, both
// endpoints included. FindPath(x, x) is [x]. It returns nil when either
// endpoint is unknown or the target is unreachable.
func (g *Manager) FindPath(from, to string) []string {
	if _, ok := g.pages[from]; !ok {
		return nil
	}
	if _, ok := g.pages[to]; !ok {
		return nil
	}
	if from == to {
		return []string{from}
	}

	type bfsItem struct {
		pageID string
		path   []string
	}
	queue := []bfsItem{{pageID: from, path: []string{from}}}
	visited := map[string]bool{from: true}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		for _, t := range g.pages[item.pageID].Transitions {
			if visited[t.TargetPage] {
				continue
			}
			path := append(slices.Clone(item.path), t.TargetPage)
			if t.TargetPage == to {
				return path
			}
			visited[t.TargetPage] = true
			queue = append(queue, bfsItem{pageID: t.TargetPage, path: path})
		}
	}
	return nil
}

// document snapshots the graph for persistence.
func (g *Manager) document() Document {
	doc := Document{
		Pages:    make(map[string]PageConfig, len(g.pages)),
		Elements: make(map[string]element.Config, len(g.elements)),
	}
	for id, page := range g.pages {
		doc.Pages[id] = page.clone()
	}
	for id, cfg := range g.elements {
		cfg.Data = slices.Clone(cfg.Data)
		doc.Elements[id] = cfg
	}
	return doc
}
