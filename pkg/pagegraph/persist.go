// pkg/pagegraph/persist.go
package pagegraph

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/element"
	"github.com/varkai/screenpilot/pkg/types"
)

// Save writes the whole graph as one JSON document, creating missing parent
// directories. The write goes through a temp file and a rename so a crash
// cannot leave a half-written document behind.
func (g *Manager) Save(path string) error {
	doc := g.document()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return types.WrapError(types.CodeConfiguration, err, "encoding page graph")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.WrapError(types.CodeConfiguration, err, "creating directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return types.WrapError(types.CodeConfiguration, err, "creating temp file in %s", dir)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return types.WrapError(types.CodeConfiguration, err, "writing %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return types.WrapError(types.CodeConfiguration, err, "closing %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return types.WrapError(types.CodeConfiguration, err, "replacing %s", path)
	}

	g.logger.Info("page graph saved",
		zap.String("path", path),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("elements", len(doc.Elements)))
	return nil
}

// Load replaces the manager's contents with the document at path. Any load
// problem, from an unreadable file to a dangling id reference, comes back
// as a configuration error and leaves the manager unchanged.
func (g *Manager) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.WrapError(types.CodeConfiguration, err, "reading page graph %s", path)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		return fmt.Errorf("loading page graph %s: %w", path, err)
	}

	g.pages = doc.Pages
	g.elements = doc.Elements
	g.runtime = make(map[string]element.Element)
	g.pageOrder = make([]string, 0, len(doc.Pages))
	for id := range doc.Pages {
		g.pageOrder = append(g.pageOrder, id)
	}
	slices.Sort(g.pageOrder)

	g.logger.Info("page graph loaded",
		zap.String("path", path),
		zap.Int("pages", len(g.pages)),
		zap.Int("elements", len(g.elements)))
	return nil
}

// DecodeDocument parses and validates a graph document. Map keys win over
// any embedded id fields; empty embedded ids are filled in from the keys.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, types.WrapError(types.CodeConfiguration, err, "malformed page graph document")
	}
	if doc.Pages == nil {
		doc.Pages = make(map[string]PageConfig)
	}
	if doc.Elements == nil {
		doc.Elements = make(map[string]element.Config)
	}

	for id, cfg := range doc.Elements {
		if cfg.ID == "" {
			cfg.ID = id
			doc.Elements[id] = cfg
		} else if cfg.ID != id {
			return Document{}, types.NewError(types.CodeConfiguration, "element keyed %q carries id %q", id, cfg.ID)
		}
		if cfg.Type != element.TypeImage && cfg.Type != element.TypePixelColor {
			return Document{}, types.NewError(types.CodeConfiguration, "element %q has unknown type %q", id, cfg.Type)
		}
	}
	for id, page := range doc.Pages {
		if page.ID == "" {
			page.ID = id
			doc.Pages[id] = page
		} else if page.ID != id {
			return Document{}, types.NewError(types.CodeConfiguration, "page keyed %q carries id %q", id, page.ID)
		}
	}

	if err := validateDocument(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// validateDocument enforces the referential integrity invariant: every id a
// page or transition mentions must exist.
func validateDocument(doc Document) error {
	for pageID, page := range doc.Pages {
		for _, id := range page.IdentifierElementIDs {
			if _, ok := doc.Elements[id]; !ok {
				return types.NewError(types.CodeConfiguration, "page %q identifier references unknown element %q", pageID, id)
			}
		}
		for _, id := range page.InteractiveElementIDs {
			if _, ok := doc.Elements[id]; !ok {
				return types.NewError(types.CodeConfiguration, "page %q interactive set references unknown element %q", pageID, id)
			}
		}
		for _, t := range page.Transitions {
			if _, ok := doc.Elements[t.ElementID]; !ok {
				return types.NewError(types.CodeConfiguration, "transition %s->%s references unknown element %q", pageID, t.TargetPage, t.ElementID)
			}
			if _, ok := doc.Pages[t.TargetPage]; !ok {
				return types.NewError(types.CodeConfiguration, "transition from %q targets unknown page %q", pageID, t.TargetPage)
			}
			for _, id := range t.ConfirmationElementIDs {
				if _, ok := doc.Elements[id]; !ok {
					return types.NewError(types.CodeConfiguration, "transition %s->%s confirmation references unknown element %q", pageID, t.TargetPage, id)
				}
			}
		}
	}
	return nil
}
