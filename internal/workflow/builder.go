// internal/workflow/builder.go
package workflow

import (
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/varkai/screenpilot/pkg/automation"
	"github.com/varkai/screenpilot/pkg/condition"
	"github.com/varkai/screenpilot/pkg/element"
	"github.com/varkai/screenpilot/pkg/geometry"
	"github.com/varkai/screenpilot/pkg/pagegraph"
	"github.com/varkai/screenpilot/pkg/types"
)

const defaultCheckInterval = 500 * time.Millisecond

// Builder turns decoded documents into executable steps, resolving element
// references through a page graph and wiring every step with the capture
// and click collaborators its controller will use.
type Builder struct {
	graph   *pagegraph.Manager
	frames  automation.FrameProvider
	clicker automation.Clicker
	ocr     element.OCRProvider
	logger  *zap.Logger
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithOCR wires an OCR provider into text and number collectors. Without
// one, those collectors fail at execution time, not at build time.
func WithOCR(p element.OCRProvider) BuilderOption {
	return func(b *Builder) { b.ocr = p }
}

// NewBuilder constructs a builder over the given graph and collaborators.
func NewBuilder(graph *pagegraph.Manager, frames automation.FrameProvider, clicker automation.Clicker, logger *zap.Logger, opts ...BuilderOption) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Builder{
		graph:   graph,
		frames:  frames,
		clicker: clicker,
		logger:  logger.Named("workflow"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var stepDecoders map[string]func(*Builder, StepConfig) (automation.Step, error)

// Populated in init rather than in the declaration: decodeConditional and
// decodeLoop recurse through BuildStep, which reads this map, and a direct
// initializer would form an initialization cycle.
func init() {
	stepDecoders = map[string]func(*Builder, StepConfig) (automation.Step, error){
		TypeInteraction: (*Builder).decodeInteraction,
		TypeWait:        (*Builder).decodeWait,
		TypeCollection:  (*Builder).decodeCollection,
		TypeConditional: (*Builder).decodeConditional,
		TypeLoop:        (*Builder).decodeLoop,
	}
}

// Build materializes every top-level step of the document, in file order.
func (b *Builder) Build(doc Document) ([]automation.Step, error) {
	steps := make([]automation.Step, 0, len(doc.Steps))
	for _, cfg := range doc.Steps {
		s, err := b.BuildStep(cfg)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// BuildStep materializes one step envelope. Nested envelopes inside
// conditional branches and loop bodies go through here too.
func (b *Builder) BuildStep(cfg StepConfig) (automation.Step, error) {
	if cfg.ID == "" {
		return nil, types.NewError(types.CodeConfiguration, "step of type %q has no id", cfg.Type)
	}
	decode, ok := stepDecoders[cfg.Type]
	if !ok {
		return nil, types.NewError(types.CodeConfiguration, "step %q has unknown type %q", cfg.ID, cfg.Type)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID
	}
	return decode(b, cfg)
}

// -- interaction --

type interactionPayload struct {
	Element     string            `json:"element"`
	Pre         []ConditionConfig `json:"pre,omitempty"`
	Post        []ConditionConfig `json:"post,omitempty"`
	MaxRetries  int               `json:"max_retries,omitempty"`
	RetryDelay  string            `json:"retry_delay,omitempty"`
	SettleDelay string            `json:"settle_delay,omitempty"`
}

func (b *Builder) decodeInteraction(cfg StepConfig) (automation.Step, error) {
	var p interactionPayload
	if err := json.Unmarshal(cfg.Data, &p); err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "step %q: malformed interaction payload", cfg.ID)
	}
	if p.Element == "" {
		return nil, types.NewError(types.CodeConfiguration, "step %q references no element", cfg.ID)
	}
	el, err := b.graph.Element(p.Element)
	if err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "step %q", cfg.ID)
	}

	var opts []automation.InteractionOption
	if len(p.Pre) > 0 {
		conds, err := b.decodeConditions(cfg.ID, p.Pre)
		if err != nil {
			return nil, err
		}
		opts = append(opts, automation.WithPreConditions(conds...))
	}
	if len(p.Post) > 0 {
		conds, err := b.decodeConditions(cfg.ID, p.Post)
		if err != nil {
			return nil, err
		}
		opts = append(opts, automation.WithPostConditions(conds...))
	}
	if p.MaxRetries < 0 {
		return nil, types.NewError(types.CodeConfiguration, "step %q: max_retries must not be negative", cfg.ID)
	}
	if p.MaxRetries > 0 || p.RetryDelay != "" {
		// An absent delay parses to -1, which WithRetries ignores.
		delay, err := parseOptionalDuration(cfg.ID, "retry_delay", p.RetryDelay)
		if err != nil {
			return nil, err
		}
		opts = append(opts, automation.WithRetries(p.MaxRetries, delay))
	}
	if p.SettleDelay != "" {
		settle, err := parseOptionalDuration(cfg.ID, "settle_delay", p.SettleDelay)
		if err != nil {
			return nil, err
		}
		opts = append(opts, automation.WithSettleDelay(settle))
	}

	return automation.NewInteractionStep(cfg.ID, cfg.Name, el, b.clicker, b.frames, b.logger, opts...), nil
}

// -- wait --

type waitPayload struct {
	Conditions    []ConditionConfig `json:"conditions"`
	Timeout       string            `json:"timeout"`
	CheckInterval string            `json:"check_interval,omitempty"`
	AllRequired   bool              `json:"all_required,omitempty"`
}

func (b *Builder) decodeWait(cfg StepConfig) (automation.Step, error) {
	var p waitPayload
	if err := json.Unmarshal(cfg.Data, &p); err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "step %q: malformed wait payload", cfg.ID)
	}
	if len(p.Conditions) == 0 {
		return nil, types.NewError(types.CodeConfiguration, "step %q has no conditions", cfg.ID)
	}
	conds, err := b.decodeConditions(cfg.ID, p.Conditions)
	if err != nil {
		return nil, err
	}
	timeout, err := parseOptionalDuration(cfg.ID, "timeout", p.Timeout)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, types.NewError(types.CodeConfiguration, "step %q needs a positive timeout", cfg.ID)
	}
	interval, err := parseOptionalDuration(cfg.ID, "check_interval", p.CheckInterval)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return automation.NewWaitStep(cfg.ID, cfg.Name, conds, timeout, interval, p.AllRequired, b.frames, b.logger), nil
}

// -- collection --

type collectionPayload struct {
	Collectors []collectorPayload `json:"collectors"`
	Pre        []ConditionConfig  `json:"pre,omitempty"`
}

type collectorPayload struct {
	Key    string        `json:"key"`
	Kind   string        `json:"kind"`
	Region regionPayload `json:"region"`
}

func (b *Builder) decodeCollection(cfg StepConfig) (automation.Step, error) {
	var p collectionPayload
	if err := json.Unmarshal(cfg.Data, &p); err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "step %q: malformed collection payload", cfg.ID)
	}
	if len(p.Collectors) == 0 {
		return nil, types.NewError(types.CodeConfiguration, "step %q has no collectors", cfg.ID)
	}

	collectors := make([]automation.Collector, 0, len(p.Collectors))
	for _, cp := range p.Collectors {
		if cp.Key == "" {
			return nil, types.NewError(types.CodeConfiguration, "step %q has a collector without a key", cfg.ID)
		}
		region := cp.Region.region(cp.Key)
		switch cp.Kind {
		case CollectText:
			collectors = append(collectors, automation.NewTextCollector(cp.Key, region, b.ocr, b.logger))
		case CollectNumber:
			collectors = append(collectors, automation.NewNumberCollector(cp.Key, region, b.ocr, b.logger))
		case CollectImage:
			collectors = append(collectors, automation.NewImageCollector(cp.Key, region, b.logger))
		default:
			return nil, types.NewError(types.CodeConfiguration, "step %q: collector %q has unknown kind %q", cfg.ID, cp.Key, cp.Kind)
		}
	}

	var pre []condition.Condition
	if len(p.Pre) > 0 {
		var err error
		pre, err = b.decodeConditions(cfg.ID, p.Pre)
		if err != nil {
			return nil, err
		}
	}
	return automation.NewCollectionStep(cfg.ID, cfg.Name, collectors, pre, b.logger), nil
}

// -- conditional --

type conditionalPayload struct {
	Branches []branchPayload `json:"branches,omitempty"`
	Default  *StepConfig     `json:"default,omitempty"`
}

type branchPayload struct {
	Condition ConditionConfig `json:"condition"`
	Step      StepConfig      `json:"step"`
}

func (b *Builder) decodeConditional(cfg StepConfig) (automation.Step, error) {
	var p conditionalPayload
	if err := json.Unmarshal(cfg.Data, &p); err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "step %q: malformed conditional payload", cfg.ID)
	}
	if len(p.Branches) == 0 && p.Default == nil {
		return nil, types.NewError(types.CodeConfiguration, "step %q has neither branches nor a default", cfg.ID)
	}

	branches := make([]automation.ConditionalBranch, 0, len(p.Branches))
	for i, bp := range p.Branches {
		cond, err := b.decodeCondition(cfg.ID, bp.Condition)
		if err != nil {
			return nil, err
		}
		step, err := b.BuildStep(bp.Step)
		if err != nil {
			return nil, types.WrapError(types.CodeConfiguration, err, "step %q: branch %d", cfg.ID, i)
		}
		branches = append(branches, automation.ConditionalBranch{Condition: cond, Step: step})
	}

	var defaultStep automation.Step
	if p.Default != nil {
		var err error
		defaultStep, err = b.BuildStep(*p.Default)
		if err != nil {
			return nil, types.WrapError(types.CodeConfiguration, err, "step %q: default branch", cfg.ID)
		}
	}
	return automation.NewConditionalStep(cfg.ID, cfg.Name, branches, defaultStep, b.logger), nil
}

// -- loop --

type loopPayload struct {
	Step          StepConfig       `json:"step"`
	MaxIterations int              `json:"max_iterations,omitempty"`
	While         *ConditionConfig `json:"while,omitempty"`
}

func (b *Builder) decodeLoop(cfg StepConfig) (automation.Step, error) {
	var p loopPayload
	if err := json.Unmarshal(cfg.Data, &p); err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "step %q: malformed loop payload", cfg.ID)
	}
	if p.MaxIterations < 0 {
		return nil, types.NewError(types.CodeConfiguration, "step %q: max_iterations must not be negative", cfg.ID)
	}
	// max_iterations 0 means unbounded, so something else must end the loop.
	if p.MaxIterations == 0 && p.While == nil {
		return nil, types.NewError(types.CodeConfiguration, "step %q needs max_iterations or a while condition", cfg.ID)
	}

	body, err := b.BuildStep(p.Step)
	if err != nil {
		return nil, types.WrapError(types.CodeConfiguration, err, "step %q: loop body", cfg.ID)
	}
	factory := func(int, *automation.Context) (automation.Step, error) {
		return body, nil
	}

	var while condition.Condition
	if p.While != nil {
		while, err = b.decodeCondition(cfg.ID, *p.While)
		if err != nil {
			return nil, err
		}
	}
	return automation.NewLoopStep(cfg.ID, cfg.Name, factory, p.MaxIterations, while, b.frames, b.logger), nil
}

// -- conditions --

type waitConditionPayload struct {
	Duration string `json:"duration"`
}

type elementConditionPayload struct {
	Elements     []string `json:"elements"`
	AllMustMatch bool     `json:"all_must_match,omitempty"`
	ShouldExist  *bool    `json:"should_exist,omitempty"`
}

type stateConditionPayload struct {
	States []string `json:"states"`
}

type multiConditionPayload struct {
	Conditions []ConditionConfig `json:"conditions"`
}

func (b *Builder) decodeConditions(stepID string, cfgs []ConditionConfig) ([]condition.Condition, error) {
	conds := make([]condition.Condition, 0, len(cfgs))
	for _, cc := range cfgs {
		c, err := b.decodeCondition(stepID, cc)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func (b *Builder) decodeCondition(stepID string, cfg ConditionConfig) (condition.Condition, error) {
	switch cfg.Type {
	case CondWait:
		var p waitConditionPayload
		if err := json.Unmarshal(cfg.Data, &p); err != nil {
			return nil, types.WrapError(types.CodeConfiguration, err, "step %q: malformed wait condition", stepID)
		}
		d, err := time.ParseDuration(p.Duration)
		if err != nil {
			return nil, types.WrapError(types.CodeConfiguration, err, "step %q: wait condition duration", stepID)
		}
		if d <= 0 {
			return nil, types.NewError(types.CodeConfiguration, "step %q: wait condition needs a positive duration", stepID)
		}
		return condition.NewWaitCondition(d), nil

	case CondElement:
		var p elementConditionPayload
		if err := json.Unmarshal(cfg.Data, &p); err != nil {
			return nil, types.WrapError(types.CodeConfiguration, err, "step %q: malformed element condition", stepID)
		}
		if len(p.Elements) == 0 {
			return nil, types.NewError(types.CodeConfiguration, "step %q: element condition names no elements", stepID)
		}
		els := make([]element.Element, 0, len(p.Elements))
		for _, id := range p.Elements {
			el, err := b.graph.Element(id)
			if err != nil {
				return nil, types.WrapError(types.CodeConfiguration, err, "step %q", stepID)
			}
			els = append(els, el)
		}
		shouldExist := true
		if p.ShouldExist != nil {
			shouldExist = *p.ShouldExist
		}
		return condition.NewElementCondition(els, p.AllMustMatch, shouldExist, b.logger), nil

	case CondState:
		var p stateConditionPayload
		if err := json.Unmarshal(cfg.Data, &p); err != nil {
			return nil, types.WrapError(types.CodeConfiguration, err, "step %q: malformed state condition", stepID)
		}
		if len(p.States) == 0 {
			return nil, types.NewError(types.CodeConfiguration, "step %q: state condition names no states", stepID)
		}
		return condition.NewStateCondition(p.States), nil

	case CondAll, CondAny:
		var p multiConditionPayload
		if err := json.Unmarshal(cfg.Data, &p); err != nil {
			return nil, types.WrapError(types.CodeConfiguration, err, "step %q: malformed %s condition", stepID, cfg.Type)
		}
		if len(p.Conditions) == 0 {
			return nil, types.NewError(types.CodeConfiguration, "step %q: %s condition has no children", stepID, cfg.Type)
		}
		children, err := b.decodeConditions(stepID, p.Conditions)
		if err != nil {
			return nil, err
		}
		return condition.NewMultiCondition(children, cfg.Type == CondAll), nil

	default:
		return nil, types.NewError(types.CodeConfiguration, "step %q: unknown condition type %q", stepID, cfg.Type)
	}
}

// -- shared payload pieces --

type regionPayload struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	TotalWidth  int    `json:"total_width"`
	TotalHeight int    `json:"total_height"`
	Name        string `json:"name,omitempty"`
}

func (p regionPayload) region(fallbackName string) geometry.Region {
	name := p.Name
	if name == "" {
		name = fallbackName
	}
	return geometry.NewRegion(p.X, p.Y, p.Width, p.Height, p.TotalWidth, p.TotalHeight, name)
}

// parseOptionalDuration parses a duration field. An empty value comes back
// as -1 so callers can fall back to their own default.
func parseOptionalDuration(stepID, field, value string) (time.Duration, error) {
	if value == "" {
		return -1, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, types.WrapError(types.CodeConfiguration, err, "step %q: %s", stepID, field)
	}
	if d < 0 {
		return 0, types.NewError(types.CodeConfiguration, "step %q: %s must not be negative", stepID, field)
	}
	return d, nil
}
