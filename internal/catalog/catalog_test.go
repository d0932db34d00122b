package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
)

type fakeRendererClient struct {
	objectInfo map[string]interfaces.NodeSchema
}

func (f *fakeRendererClient) Ping(ctx context.Context) bool { return true }
func (f *fakeRendererClient) ObjectInfo(ctx context.Context) (map[string]interfaces.NodeSchema, error) {
	return f.objectInfo, nil
}
func (f *fakeRendererClient) Submit(ctx context.Context, graph interfaces.Graph) (string, error) {
	return "", nil
}
func (f *fakeRendererClient) History(ctx context.Context, id string) (*interfaces.HistoryEntry, error) {
	return nil, nil
}
func (f *fakeRendererClient) FetchImage(ctx context.Context, filename, subfolder, typ string) ([]byte, error) {
	return nil, nil
}
func (f *fakeRendererClient) UploadImage(ctx context.Context, data []byte, filename string) (*interfaces.UploadResult, error) {
	return nil, nil
}
func (f *fakeRendererClient) AdapterHash(ctx context.Context, filename string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeRendererClient) AdapterTriggerWordsLocal(ctx context.Context, filename string) ([]string, bool, error) {
	return nil, false, nil
}

func enumSpec(values []interface{}) []interface{} {
	return []interface{}{values, map[string]interface{}{}}
}

func stringList(n int, prefix string) []interface{} {
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func baseSchemas() map[string]interfaces.NodeSchema {
	checkpoint := interfaces.NodeSchema{}
	checkpoint.Input.Required = map[string][]interface{}{
		"ckpt_name": enumSpec(stringList(3, "model")),
	}

	sampler := interfaces.NodeSchema{}
	sampler.Input.Required = map[string][]interface{}{
		"sampler_name": enumSpec(stringList(3, "sampler")),
		"scheduler":    enumSpec(stringList(2, "sched")),
	}

	lora := interfaces.NodeSchema{}
	lora.Input.Required = map[string][]interface{}{
		"lora_name": enumSpec(stringList(3, "adapter")),
	}

	return map[string]interfaces.NodeSchema{
		"CheckpointLoaderSimple": checkpoint,
		"KSamplerAdvancedEfficient": sampler,
		"LoraLoader":               lora,
	}
}

func TestResolvePrefersAdvancedEfficientSampler(t *testing.T) {
	client := &fakeRendererClient{objectInfo: baseSchemas()}
	cat, err := Resolve(context.Background(), client, common.NewSilentLogger())
	require.NoError(t, err)
	require.Equal(t, "KSamplerAdvancedEfficient", cat.SamplerNode, "expected advanced-efficient sampler")
	require.Equal(t, "CheckpointLoaderSimple", cat.CheckpointNode, "expected stock checkpoint loader")
	require.Len(t, cat.Checkpoints, 3)
	require.Len(t, cat.Samplers, 3)
	require.Len(t, cat.Schedulers, 2)
	require.Len(t, cat.Adapters, 3)
}

func TestResolveFailsWhenNoCheckpointClassResolvable(t *testing.T) {
	schemas := baseSchemas()
	delete(schemas, "CheckpointLoaderSimple")
	client := &fakeRendererClient{objectInfo: schemas}

	_, err := Resolve(context.Background(), client, common.NewSilentLogger())
	require.Error(t, err, "expected an error when no checkpoint class is resolvable")
}

func TestResolveFuzzyMatchesCheckpointLoaderByNameContains(t *testing.T) {
	schemas := baseSchemas()
	custom := schemas["CheckpointLoaderSimple"]
	delete(schemas, "CheckpointLoaderSimple")
	schemas["WeirdVendorCheckpointLoaderX"] = custom
	client := &fakeRendererClient{objectInfo: schemas}

	cat, err := Resolve(context.Background(), client, common.NewSilentLogger())
	require.NoError(t, err)
	require.Equal(t, "WeirdVendorCheckpointLoaderX", cat.CheckpointNode, "expected fuzzy-matched checkpoint class")
}

func TestResolveTruncatesOversizedEnumLists(t *testing.T) {
	schemas := baseSchemas()
	checkpoint := interfaces.NodeSchema{}
	checkpoint.Input.Required = map[string][]interface{}{
		"ckpt_name": enumSpec(stringList(26, "model")),
	}
	schemas["CheckpointLoaderSimple"] = checkpoint

	lora := interfaces.NodeSchema{}
	lora.Input.Required = map[string][]interface{}{
		"lora_name": enumSpec(stringList(101, "adapter")),
	}
	schemas["LoraLoader"] = lora

	client := &fakeRendererClient{objectInfo: schemas}
	cat, err := Resolve(context.Background(), client, common.NewSilentLogger())
	require.NoError(t, err)
	require.Len(t, cat.Checkpoints, 25, "expected checkpoint list truncated to 25")
	require.Len(t, cat.Adapters, 100, "expected adapter list truncated to 100")
}

func TestResolveFailsWhenRequiredEnumIsEmpty(t *testing.T) {
	schemas := baseSchemas()
	sampler := interfaces.NodeSchema{}
	sampler.Input.Required = map[string][]interface{}{
		"sampler_name": enumSpec([]interface{}{}),
		"scheduler":    enumSpec(stringList(2, "sched")),
	}
	schemas["KSamplerAdvancedEfficient"] = sampler

	client := &fakeRendererClient{objectInfo: schemas}
	_, err := Resolve(context.Background(), client, common.NewSilentLogger())
	require.Error(t, err, "expected an error when a required enum is empty")
}
