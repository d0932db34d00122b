// Package binder loads template graphs, validates their required nodes and
// fields, and binds per-job parameters into a deep-cloned copy — including
// synthesising a chained adapter subgraph that reroutes existing edges.
package binder

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
)

// requiredField names one field that must be non-null on a required node.
type requiredField struct {
	node  string
	field string
}

// baseRequiredFields is the base-graph validation table.
// Node-role names describe the role the binder plays against them, fixed
// by nodeIDs below — not the vocabulary the template itself uses.
var baseRequiredFields = []requiredField{
	{nodeLatentSize, "width"},
	{nodeLatentSize, "height"},
	{nodeCheckpoint, "ckpt_name"},
	{nodeSeed, "seed"},
	{nodePositiveEncoder, "text"},
	{nodeNegativeEncoder, "text"},
	{nodePrimarySampler, "sampler_name"},
	{nodePrimarySampler, "scheduler"},
	{nodePrimarySampler, "steps"},
	{nodePrimarySampler, "cfg"},
	{nodeAuxSampler1, "sampler_name"},
	{nodeAuxSampler1, "scheduler"},
	{nodeAuxSampler2, "sampler_name"},
	{nodeAuxSampler2, "scheduler"},
	{nodeAuxSampler3, "sampler_name"},
	{nodeAuxSampler3, "scheduler"},
}

// Fixed node-ids the base template is expected to carry. These are the
// template's own vocabulary (numeric string ids), bound once here so the
// rest of the binder reasons about roles, not literals.
const (
	nodeLatentSize       = "5"
	nodeCheckpoint       = "4"
	nodeSeed             = "256"
	nodePositiveEncoder  = "6"
	nodeNegativeEncoder  = "7"
	nodePrimarySampler   = "3"
	nodeAuxSampler1      = "10"
	nodeAuxSampler2      = "11"
	nodeAuxSampler3      = "12"
)

const (
	upscaleNodeLoader    = "1"
	upscaleNodeModel     = "2"
	upscalePositiveNode  = "3"
	upscaleNegativeNode  = "4"
)

// upscaleRequiredFields is the smaller validation table for upscale templates.
var upscaleRequiredFields = []requiredField{
	{upscaleNodeLoader, "image"},
	{upscaleNodeModel, "model_name"},
}

// loadedTemplate holds a template's cached source text, loaded once via
// sync.Once and re-parsed into a fresh Graph on every bind.
type loadedTemplate struct {
	once sync.Once
	path string
	text []byte
	err  error
}

func (t *loadedTemplate) load() ([]byte, error) {
	t.once.Do(func() {
		t.text, t.err = os.ReadFile(t.path)
	})
	return t.text, t.err
}

func (t *loadedTemplate) parse() (interfaces.Graph, error) {
	text, err := t.load()
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", t.path, err)
	}
	var graph interfaces.Graph
	if err := json.Unmarshal(text, &graph); err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", t.path, err)
	}
	return graph, nil
}

// Binder implements interfaces.Binder against the configured template files.
type Binder struct {
	base            *loadedTemplate
	upscaleUltimate *loadedTemplate
	upscaleSimple   *loadedTemplate
	activeWorkflow  string
	logger          *common.Logger
}

// New constructs a Binder for the given template paths. activeWorkflow
// selects which upscale template ValidateUpscaleTemplate checks at boot.
func New(cfg common.TemplatesConfig, activeWorkflow string, logger *common.Logger) *Binder {
	return &Binder{
		base:            &loadedTemplate{path: cfg.BasePath},
		upscaleUltimate: &loadedTemplate{path: cfg.UpscaleUltimatePath},
		upscaleSimple:   &loadedTemplate{path: cfg.UpscaleSimplePath},
		activeWorkflow:  activeWorkflow,
		logger:          logger,
	}
}

func (b *Binder) activeUpscale() *loadedTemplate {
	if b.activeWorkflow == "simple" {
		return b.upscaleSimple
	}
	return b.upscaleUltimate
}

// ValidateBaseTemplate checks the base graph against baseRequiredFields,
// short-circuiting at the first missing node/field.
func (b *Binder) ValidateBaseTemplate() error {
	graph, err := b.base.parse()
	if err != nil {
		return err
	}
	return validate(graph, baseRequiredFields)
}

// ValidateUpscaleTemplate checks the active upscale graph against its own
// (smaller) required-fields table.
func (b *Binder) ValidateUpscaleTemplate() error {
	graph, err := b.activeUpscale().parse()
	if err != nil {
		return err
	}
	return validate(graph, upscaleRequiredFields)
}

func validate(graph interfaces.Graph, required []requiredField) error {
	for _, rf := range required {
		node, ok := graph[rf.node]
		if !ok {
			return &common.TemplateError{Node: rf.node, Reason: "node missing from template"}
		}
		v, ok := node.Inputs[rf.field]
		if !ok || v == nil {
			return &common.TemplateError{Node: rf.node, Field: rf.field, Reason: "required field is absent or null"}
		}
	}
	return nil
}

// cloneGraph deep-clones a Graph via a JSON marshal/unmarshal round-trip so
// every job receives an independent copy, safe for the bind transform to
// mutate in place.
func cloneGraph(graph interfaces.Graph) (interfaces.Graph, error) {
	data, err := json.Marshal(graph)
	if err != nil {
		return nil, fmt.Errorf("marshaling graph for clone: %w", err)
	}
	var out interfaces.Graph
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling cloned graph: %w", err)
	}
	return out, nil
}
