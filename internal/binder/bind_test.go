package binder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/models"
)

func writeTemplate(t *testing.T, dir, name string, graph interfaces.Graph) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data, err := json.Marshal(graph)
	require.NoError(t, err, "marshaling fixture template")
	require.NoError(t, os.WriteFile(path, data, 0644), "writing fixture template")
	return path
}

func baseGraphFixture() interfaces.Graph {
	node := func(class string, inputs map[string]interface{}) interfaces.GraphNode {
		return interfaces.GraphNode{ClassType: class, Inputs: inputs}
	}
	return interfaces.Graph{
		nodeCheckpoint: node("CheckpointLoaderSimple", map[string]interface{}{"ckpt_name": "placeholder"}),
		nodeLatentSize: node("EmptyLatentImage", map[string]interface{}{"width": 0, "height": 0}),
		nodeSeed:       node("Seed", map[string]interface{}{"seed": 0}),
		nodePositiveEncoder: node("CLIPTextEncode", map[string]interface{}{
			"text": "",
			"clip": []interface{}{nodeCheckpoint, float64(1)},
		}),
		nodeNegativeEncoder: node("CLIPTextEncode", map[string]interface{}{
			"text": "",
			"clip": []interface{}{nodeCheckpoint, float64(1)},
		}),
		nodePrimarySampler: node("KSamplerAdvancedEfficient", map[string]interface{}{
			"sampler_name": "", "scheduler": "", "steps": 0, "cfg": 0.0,
			"model": []interface{}{nodeCheckpoint, float64(0)},
		}),
		nodeAuxSampler1: node("KSamplerAdvancedEfficient", map[string]interface{}{
			"sampler_name": "", "scheduler": "",
			"model": []interface{}{nodeCheckpoint, float64(0)},
		}),
		nodeAuxSampler2: node("KSamplerAdvancedEfficient", map[string]interface{}{
			"sampler_name": "", "scheduler": "",
			"model": []interface{}{nodeCheckpoint, float64(0)},
		}),
		nodeAuxSampler3: node("KSamplerAdvancedEfficient", map[string]interface{}{
			"sampler_name": "", "scheduler": "",
			"model": []interface{}{nodeCheckpoint, float64(0)},
		}),
	}
}

func newTestBinder(t *testing.T, graph interfaces.Graph) *Binder {
	t.Helper()
	dir := t.TempDir()
	path := writeTemplate(t, dir, "base.json", graph)
	cfg := common.TemplatesConfig{BasePath: path}
	return New(cfg, "ultimate", common.NewSilentLogger())
}

func TestValidateBaseTemplateSucceedsOnWellFormedGraph(t *testing.T) {
	b := newTestBinder(t, baseGraphFixture())
	require.NoError(t, b.ValidateBaseTemplate())
}

func TestValidateBaseTemplateFailsOnMissingField(t *testing.T) {
	graph := baseGraphFixture()
	delete(graph[nodePrimarySampler].Inputs, "cfg")
	b := newTestBinder(t, graph)

	err := b.ValidateBaseTemplate()
	require.Error(t, err, "expected validation to fail when primary sampler is missing cfg")
	tmplErr, ok := err.(*common.TemplateError)
	require.Truef(t, ok, "expected *common.TemplateError, got %T", err)
	require.Equal(t, nodePrimarySampler, tmplErr.Node)
	require.Equal(t, "cfg", tmplErr.Field)
}

func sampleJob(adapters []models.AdapterSlot) *models.Job {
	return &models.Job{
		Model:          "M",
		Sampler:        "dpmpp_2m_sde",
		Scheduler:      "karras",
		Steps:          28,
		CFG:            5,
		Seed:           42,
		Size:           models.SizePortrait,
		PositivePrompt: "a cat",
		NegativePrompt: "",
		Adapters:       adapters,
	}
}

func TestBindWithNoAdaptersWritesAllFieldsAndLeavesReferencesUntouched(t *testing.T) {
	b := newTestBinder(t, baseGraphFixture())
	graph, err := b.Bind(sampleJob(nil), nil)
	require.NoError(t, err)

	require.Equal(t, "M", graph[nodeCheckpoint].Inputs["ckpt_name"])
	require.Equal(t, uint32(42), graph[nodeSeed].Inputs["seed"])
	width, height := models.SizePortrait.Dimensions()
	require.Equal(t, width, graph[nodeLatentSize].Inputs["width"])
	require.Equal(t, height, graph[nodeLatentSize].Inputs["height"])
	require.Equal(t, "a cat", graph[nodePositiveEncoder].Inputs["text"], "expected positive prompt unchanged with no adapters")

	primary := graph[nodePrimarySampler].Inputs
	require.Equal(t, "dpmpp_2m_sde", primary["sampler_name"])
	require.Equal(t, "karras", primary["scheduler"])
	require.Equal(t, 28, primary["steps"])
	require.Equal(t, 5.0, primary["cfg"])

	for _, aux := range []string{nodeAuxSampler1, nodeAuxSampler2, nodeAuxSampler3} {
		inputs := graph[aux].Inputs
		require.Equalf(t, "dpmpp_2m_sde", inputs["sampler_name"], "aux sampler %s", aux)
		require.Equalf(t, "karras", inputs["scheduler"], "aux sampler %s", aux)
		_, hasSteps := inputs["steps"]
		require.Falsef(t, hasSteps, "aux sampler %s must never receive steps", aux)
		_, hasCfg := inputs["cfg"]
		require.Falsef(t, hasCfg, "aux sampler %s must never receive cfg", aux)
		ref, _, _, _ := refOf(t, inputs["model"])
		require.Equalf(t, nodeCheckpoint, ref, "with no adapters, aux sampler model ref should remain checkpoint")
	}
	for _, id := range []string{"2001", "2002", "2003", "2004"} {
		_, exists := graph[id]
		require.Falsef(t, exists, "no adapter nodes should be injected when there are no active adapters")
	}
}

func refOf(t *testing.T, v interface{}) (string, int, bool, bool) {
	t.Helper()
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 2 {
		return "", 0, false, false
	}
	id, _ := arr[0].(string)
	idx, _ := arr[1].(float64)
	return id, int(idx), true, true
}

func TestBindWithFourAdaptersChainsAndReroutesAllConsumers(t *testing.T) {
	b := newTestBinder(t, baseGraphFixture())
	adapters := []models.AdapterSlot{
		{Name: "A", Strength: 0.8},
		{Name: "B", Strength: 1.2},
		{Name: "C", Strength: 1.0},
		{Name: "D", Strength: 0.5},
	}
	lookup := func(name string) []string {
		switch name {
		case "A":
			return []string{"triggerA"}
		case "B":
			return []string{"triggerB"}
		default:
			return nil
		}
	}

	graph, err := b.Bind(sampleJob(adapters), lookup)
	require.NoError(t, err)

	// slot 0 reads from checkpoint
	slot0 := graph["2001"].Inputs
	id, _, _, _ := refOf(t, slot0["model"])
	require.Equal(t, nodeCheckpoint, id, "slot 0 should read model from checkpoint")
	id, _, _, _ = refOf(t, slot0["clip"])
	require.Equal(t, nodeCheckpoint, id, "slot 0 should read clip from checkpoint")

	// slot k>0 reads from slot k-1
	expectedPrev := map[string]string{"2002": "2001", "2003": "2002", "2004": "2003"}
	for id, prev := range expectedPrev {
		inputs := graph[id].Inputs
		srcID, _, _, _ := refOf(t, inputs["model"])
		require.Equalf(t, prev, srcID, "slot %s should read model from %s", id, prev)
		srcID, _, _, _ = refOf(t, inputs["clip"])
		require.Equalf(t, prev, srcID, "slot %s should read clip from %s", id, prev)
	}

	// every other node's checkpoint reference is rerouted to the last slot (2004)
	for _, id := range []string{nodePositiveEncoder, nodeNegativeEncoder, nodePrimarySampler, nodeAuxSampler1, nodeAuxSampler2, nodeAuxSampler3} {
		for field, v := range graph[id].Inputs {
			srcID, idx, wasRef, _ := refOf(t, v)
			if !wasRef {
				continue
			}
			require.NotEqualf(t, nodeCheckpoint, srcID, "node %s field %s still references checkpoint after injection", id, field)
			if idx == 0 || idx == 1 {
				require.Equalf(t, "2004", srcID, "node %s field %s should reroute ref to 2004", id, field)
			}
		}
	}

	// positive prompt carries flattened trigger words
	positive := graph[nodePositiveEncoder].Inputs["text"].(string)
	require.Equal(t, "a cat triggerA triggerB", positive, "expected trigger words appended to positive prompt")
}

func TestBindEmptyPositivePromptWithNoTriggerWordsFallsBackToUserPrompt(t *testing.T) {
	b := newTestBinder(t, baseGraphFixture())
	job := sampleJob(nil)
	job.PositivePrompt = "   "
	graph, err := b.Bind(job, nil)
	require.NoError(t, err)
	require.Equal(t, "", graph[nodePositiveEncoder].Inputs["text"], "expected empty trimmed prompt to remain empty")
}
