package binder

import (
	"strconv"
	"strings"

	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/models"
)

// adapterBaseNodeID is where synthetic adapter chain node-ids start, kept
// well outside the template's own id range so the rewrite pass can
// unambiguously skip newly inserted nodes.
const adapterBaseNodeID = 2001

// Bind validates nothing itself (validation happens once at boot); it
// deep-clones the base template and applies the per-job transform in the
// fixed order: adapters, size, checkpoint, seed, prompts, primary sampler,
// aux samplers, then rewires checkpoint consumers onto the adapter chain.
func (b *Binder) Bind(job *models.Job, lookup interfaces.TriggerWordsLookup) (interfaces.Graph, error) {
	template, err := b.base.parse()
	if err != nil {
		return nil, err
	}
	graph, err := cloneGraph(template)
	if err != nil {
		return nil, err
	}

	lastModelSource, lastClipSource := injectAdapters(graph, job.ActiveAdapters(), nodeCheckpoint)

	width, height := job.Size.Normalize().Dimensions()
	setField(graph, nodeLatentSize, "width", width)
	setField(graph, nodeLatentSize, "height", height)

	setField(graph, nodeCheckpoint, "ckpt_name", job.Model)
	setField(graph, nodeSeed, "seed", job.Seed)

	positive := buildPositivePrompt(job.PositivePrompt, job.ActiveAdapters(), lookup)
	setField(graph, nodePositiveEncoder, "text", positive)
	setField(graph, nodeNegativeEncoder, "text", job.NegativePrompt)

	setField(graph, nodePrimarySampler, "sampler_name", job.Sampler)
	setField(graph, nodePrimarySampler, "scheduler", job.Scheduler)
	setField(graph, nodePrimarySampler, "steps", job.Steps)
	setField(graph, nodePrimarySampler, "cfg", job.CFG)

	for _, aux := range []string{nodeAuxSampler1, nodeAuxSampler2, nodeAuxSampler3} {
		setField(graph, aux, "sampler_name", job.Sampler)
		setField(graph, aux, "scheduler", job.Scheduler)
	}

	if lastModelSource != "" {
		rerouteCheckpointOutputs(graph, nodeCheckpoint, lastModelSource, lastClipSource)
	}

	return graph, nil
}

// BindUpscale deep-clones the active upscale template and injects the
// uploaded source image and the chosen upscale model. It writes no prompt
// text for either template: the richer template's prompt encoder nodes keep
// whatever text the template file carries.
func (b *Binder) BindUpscale(job *models.UpscaleJob, uploadedFilename string) (interfaces.Graph, error) {
	template, err := b.activeUpscale().parse()
	if err != nil {
		return nil, err
	}
	graph, err := cloneGraph(template)
	if err != nil {
		return nil, err
	}

	setField(graph, upscaleNodeLoader, "image", uploadedFilename)
	setField(graph, upscaleNodeModel, "model_name", job.Model)

	return graph, nil
}

// injectAdapters filters to active slots (≤4), assigns synthetic node-ids
// starting at adapterBaseNodeID, and chains them: slot 0 reads model/clip
// from checkpointNode's outputs 0/1; slot k>0 reads from slot k-1's
// outputs. Returns the last slot's node-id for both outputs (empty string
// if there are no active adapters, meaning no reroute is needed).
func injectAdapters(graph interfaces.Graph, adapters []models.AdapterSlot, checkpointNode string) (lastModelSource, lastClipSource string) {
	if len(adapters) == 0 {
		return "", ""
	}

	prevModelSource := []interface{}{checkpointNode, 0}
	prevClipSource := []interface{}{checkpointNode, 1}

	var lastID string
	for i, slot := range adapters {
		id := strconv.Itoa(adapterBaseNodeID + i)
		graph[id] = interfaces.GraphNode{
			ClassType: "LoraLoader",
			Inputs: map[string]interface{}{
				"model":          prevModelSource,
				"clip":           prevClipSource,
				"lora_name":      slot.Name,
				"strength_model": slot.Strength,
				"strength_clip":  slot.Strength,
			},
		}
		prevModelSource = []interface{}{id, 0}
		prevClipSource = []interface{}{id, 1}
		lastID = id
	}

	return lastID, lastID
}

// rerouteCheckpointOutputs rewrites every non-adapter node's inputs that
// reference checkpointNode's output 0 or 1 to instead reference lastSlotID's
// output 0 or 1, matching by (source_id, output_index) rather than field
// name since consumer field names vary.
func rerouteCheckpointOutputs(graph interfaces.Graph, checkpointNode, lastModelSlot, lastClipSlot string) {
	for id, node := range graph {
		if isAdapterNodeID(id) {
			continue
		}
		for field, value := range node.Inputs {
			srcID, outIdx, ok := asReference(value)
			if !ok || srcID != checkpointNode {
				continue
			}
			switch outIdx {
			case 0:
				node.Inputs[field] = []interface{}{lastModelSlot, 0}
			case 1:
				node.Inputs[field] = []interface{}{lastClipSlot, 1}
			}
		}
	}
}

func isAdapterNodeID(id string) bool {
	n, err := strconv.Atoi(id)
	return err == nil && n >= adapterBaseNodeID
}

// asReference recognizes a [source_node_id, output_index] reference. Graph
// values come from a fresh json.Unmarshal per bind, so indices arrive as
// float64; the int case covers references built in-process (e.g. by
// injectAdapters on the same graph before a round-trip).
func asReference(value interface{}) (sourceID string, outputIndex int, ok bool) {
	arr, isSlice := value.([]interface{})
	if !isSlice || len(arr) != 2 {
		return "", 0, false
	}
	id, idOK := arr[0].(string)
	if !idOK {
		return "", 0, false
	}
	switch idx := arr[1].(type) {
	case float64:
		return id, int(idx), true
	case int:
		return id, idx, true
	default:
		return "", 0, false
	}
}

func setField(graph interfaces.Graph, nodeID, field string, value interface{}) {
	node, ok := graph[nodeID]
	if !ok {
		return
	}
	node.Inputs[field] = value
}

// buildPositivePrompt concatenates the user's positive prompt with the
// flattened trigger-words from all active adapters, resolved at bind time
// via lookup (not carried on the persisted Job row). Falls back to the
// prompt alone if the combined string would otherwise be empty.
func buildPositivePrompt(prompt string, adapters []models.AdapterSlot, lookup interfaces.TriggerWordsLookup) string {
	parts := []string{strings.TrimSpace(prompt)}
	for _, a := range adapters {
		if lookup == nil {
			continue
		}
		parts = append(parts, lookup(a.Name)...)
	}

	joined := strings.TrimSpace(strings.Join(nonEmpty(parts), " "))
	if joined == "" {
		return strings.TrimSpace(prompt)
	}
	return joined
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
