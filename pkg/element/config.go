// pkg/element/config.go
package element

import (
	encodingjson "encoding/json"
	"fmt"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/geometry"
	"github.com/varkai/screenpilot/pkg/types"
	"github.com/varkai/screenpilot/pkg/vision"
)

// Persisted type tags. Text probes are runtime-only and have no tag.
const (
	TypeImage      = "image"
	TypePixelColor = "pixel_color"
)

// Config is the persisted form of an element: an id, a display name, a type
// tag and the tag-specific payload. Payloads are encoded and decoded by the
// explicit per-variant codecs below; there is no reflective field discovery.
type Config struct {
	ID   string                  `json:"id"`
	Name string                  `json:"name"`
	Type string                  `json:"type"`
	Data encodingjson.RawMessage `json:"data"`
}

type codec struct {
	encode func(el Element) (encodingjson.RawMessage, error)
	decode func(cfg Config, logger *zap.Logger, opts DecodeOptions) (Element, error)
}

var codecs = map[string]codec{
	TypeImage:      {encode: encodeImagePayload, decode: decodeImagePayload},
	TypePixelColor: {encode: encodePixelPayload, decode: decodePixelPayload},
}

// DecodeOptions carries the collaborators decoded elements are wired with.
type DecodeOptions struct {
	Matcher TemplateMatcher
}

// Encode converts a runtime element into its persisted form. Only image and
// pixel-color probes are persistable.
func Encode(el Element, id string) (Config, error) {
	var typ string
	switch el.(type) {
	case *ImageElement:
		typ = TypeImage
	case *PixelColorElement:
		typ = TypePixelColor
	default:
		return Config{}, types.NewError(types.CodeConfiguration, "element %q (%T) is not persistable", el.Name(), el)
	}

	data, err := codecs[typ].encode(el)
	if err != nil {
		return Config{}, err
	}
	return Config{ID: id, Name: el.Name(), Type: typ, Data: data}, nil
}

// Decode materializes a runtime element from its persisted form. Unknown
// type tags and malformed payloads are configuration errors.
func Decode(cfg Config, logger *zap.Logger, opts DecodeOptions) (Element, error) {
	c, ok := codecs[cfg.Type]
	if !ok {
		return nil, types.NewError(types.CodeConfiguration, "element %q has unknown type %q", cfg.ID, cfg.Type)
	}
	return c.decode(cfg, logger, opts)
}

// -- image payload --

type imagePayload struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	TotalWidth  int     `json:"total_width"`
	TotalHeight int     `json:"total_height"`
	RegionName  string  `json:"name,omitempty"`
	Template    []byte  `json:"template"`
	Threshold   float64 `json:"threshold"`
}

func encodeImagePayload(el Element) (encodingjson.RawMessage, error) {
	e := el.(*ImageElement)
	if e.template == nil {
		return nil, types.NewError(types.CodeConfiguration, "image element %q has no template", e.name)
	}
	tpl, err := vision.EncodePNG(e.template)
	if err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "image element %q", e.name)
	}
	return json.Marshal(imagePayload{
		X:           e.region.StartX,
		Y:           e.region.StartY,
		Width:       e.region.Width,
		Height:      e.region.Height,
		TotalWidth:  e.region.TotalWidth,
		TotalHeight: e.region.TotalHeight,
		RegionName:  e.region.Name,
		Template:    tpl,
		Threshold:   e.threshold,
	})
}

func decodeImagePayload(cfg Config, logger *zap.Logger, opts DecodeOptions) (Element, error) {
	var p imagePayload
	if err := json.Unmarshal(cfg.Data, &p); err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "element %q: malformed image payload", cfg.ID)
	}
	if len(p.Template) == 0 {
		return nil, types.NewError(types.CodeConfiguration, "element %q: image payload has no template", cfg.ID)
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		return nil, types.NewError(types.CodeConfiguration, "element %q: threshold %v outside [0,1]", cfg.ID, p.Threshold)
	}
	tpl, err := vision.DecodePNG(p.Template)
	if err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "element %q", cfg.ID)
	}

	region := geometry.NewRegion(p.X, p.Y, p.Width, p.Height, p.TotalWidth, p.TotalHeight, p.RegionName)
	var elOpts []ImageOption
	if opts.Matcher != nil {
		elOpts = append(elOpts, WithMatcher(opts.Matcher))
	}
	return NewImageElement(cfg.Name, region, tpl, p.Threshold, logger, elOpts...), nil
}

// -- pixel_color payload --

type pixelPayload struct {
	PointsColors []pointColorPayload `json:"points_colors"`
	MatchAll     bool                `json:"match_all"`
}

type pointColorPayload struct {
	Point     pointPayload `json:"point"`
	Color     colorPayload `json:"color"`
	Tolerance int          `json:"tolerance"`
}

type pointPayload struct {
	X           int `json:"x"`
	Y           int `json:"y"`
	TotalWidth  int `json:"total_width"`
	TotalHeight int `json:"total_height"`
}

type colorPayload struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

func encodePixelPayload(el Element) (encodingjson.RawMessage, error) {
	e := el.(*PixelColorElement)
	p := pixelPayload{MatchAll: e.matchAll, PointsColors: make([]pointColorPayload, 0, len(e.pairs))}
	for _, pair := range e.pairs {
		p.PointsColors = append(p.PointsColors, pointColorPayload{
			Point: pointPayload{
				X:           pair.Point.X,
				Y:           pair.Point.Y,
				TotalWidth:  pair.Point.TotalWidth,
				TotalHeight: pair.Point.TotalHeight,
			},
			Color:     colorPayload{R: pair.Color.R, G: pair.Color.G, B: pair.Color.B},
			Tolerance: pair.Tolerance,
		})
	}
	return json.Marshal(p)
}

func decodePixelPayload(cfg Config, logger *zap.Logger, _ DecodeOptions) (Element, error) {
	var p pixelPayload
	if err := json.Unmarshal(cfg.Data, &p); err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "element %q: malformed pixel_color payload", cfg.ID)
	}
	if len(p.PointsColors) == 0 {
		return nil, types.NewError(types.CodeConfiguration, "element %q: pixel_color payload has no points", cfg.ID)
	}

	pairs := make([]PointColor, 0, len(p.PointsColors))
	for i, pc := range p.PointsColors {
		if pc.Tolerance < 0 {
			return nil, types.NewError(types.CodeConfiguration, "element %q: point %d has negative tolerance", cfg.ID, i)
		}
		pairs = append(pairs, PointColor{
			Point:     geometry.NewPoint(pc.Point.X, pc.Point.Y, pc.Point.TotalWidth, pc.Point.TotalHeight),
			Color:     geometry.NewColor(pc.Color.R, pc.Color.G, pc.Color.B),
			Tolerance: pc.Tolerance,
		})
	}
	return NewPixelColorElement(cfg.Name, pairs, p.MatchAll, logger), nil
}

// String implements fmt.Stringer for log lines.
func (c Config) String() string {
	return fmt.Sprintf("%s(%s)", c.ID, c.Type)
}
