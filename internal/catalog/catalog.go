// Package catalog resolves the renderer's node introspection at boot into
// a frozen Node Catalog: the legal enum values for models, samplers,
// schedulers, and adapters, plus the concrete node class names used for
// checkpoint loading and sampling.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/models"
)

// preferredCheckpointClasses is the preference order for the checkpoint
// loader class, before falling back to a fuzzy name match.
var preferredCheckpointClasses = []string{
	"CheckpointLoaderNF4", // a known-custom name seen in the wild
	"CheckpointLoaderSimple",
}

// preferredSamplerClasses is the preference order for the sampler class;
// the stock choice is logged as a warning because downstream graph
// semantics differ from the richer variants.
var preferredSamplerClasses = []string{
	"KSamplerAdvancedEfficient",
	"KSamplerEfficient",
	"KSampler",
}

const loraLoaderClass = "LoraLoader"

// Resolve calls object_info() and builds the frozen Node Catalog. Fails
// with a *common.CatalogError if no checkpoint class is resolvable or any
// required enum is empty.
func Resolve(ctx context.Context, client interfaces.RendererClient, logger *common.Logger) (*models.NodeCatalog, error) {
	schemas, err := client.ObjectInfo(ctx)
	if err != nil {
		return nil, &common.CatalogError{Reason: fmt.Sprintf("object_info failed: %v", err)}
	}

	checkpointClass, checkpointFuzzy := resolveCheckpointClass(schemas)
	if checkpointClass == "" {
		return nil, &common.CatalogError{Reason: "no checkpoint loader class resolvable from object_info"}
	}
	if checkpointFuzzy {
		logger.Warn().Str("class", checkpointClass).Msg("Resolved checkpoint loader class by fuzzy name match")
	}

	samplerClass, samplerIsStock := resolveSamplerClass(schemas)
	if samplerClass == "" {
		return nil, &common.CatalogError{Reason: "no sampler class resolvable from object_info"}
	}
	if samplerIsStock {
		logger.Warn().Str("class", samplerClass).Msg("Resolved stock sampler class; downstream graph semantics differ from the advanced/efficient variants")
	}

	checkpoints, err := enumStrings(schemas, checkpointClass, "ckpt_name")
	if err != nil {
		return nil, &common.CatalogError{Reason: err.Error()}
	}
	samplers, err := enumStrings(schemas, samplerClass, "sampler_name")
	if err != nil {
		return nil, &common.CatalogError{Reason: err.Error()}
	}
	schedulers, err := enumStrings(schemas, samplerClass, "scheduler")
	if err != nil {
		return nil, &common.CatalogError{Reason: err.Error()}
	}

	var adapters []string
	if lora, ok := schemas[loraLoaderClass]; ok {
		adapters, _ = enumStrings(map[string]interfaces.NodeSchema{loraLoaderClass: lora}, loraLoaderClass, "lora_name")
	}

	if len(checkpoints) > models.MaxEnumChoices {
		logger.Warn().Int("count", len(checkpoints)).Msg("Truncating checkpoint list to the option cap")
		checkpoints = models.Truncate(checkpoints, models.MaxEnumChoices)
	}
	if len(samplers) > models.MaxEnumChoices {
		logger.Warn().Int("count", len(samplers)).Msg("Truncating sampler list to the option cap")
		samplers = models.Truncate(samplers, models.MaxEnumChoices)
	}
	if len(schedulers) > models.MaxEnumChoices {
		logger.Warn().Int("count", len(schedulers)).Msg("Truncating scheduler list to the option cap")
		schedulers = models.Truncate(schedulers, models.MaxEnumChoices)
	}
	if len(adapters) > models.MaxEnumOptions {
		logger.Warn().Int("count", len(adapters)).Msg("Truncating adapter list to the catalog cap")
		adapters = models.Truncate(adapters, models.MaxEnumOptions)
	}

	return &models.NodeCatalog{
		Checkpoints:    checkpoints,
		Samplers:       samplers,
		Schedulers:     schedulers,
		Adapters:       adapters,
		CheckpointNode: checkpointClass,
		SamplerNode:    samplerClass,
	}, nil
}

func resolveCheckpointClass(schemas map[string]interfaces.NodeSchema) (class string, fuzzy bool) {
	for _, name := range preferredCheckpointClasses {
		if _, ok := schemas[name]; ok {
			return name, false
		}
	}
	for name := range schemas {
		if strings.Contains(name, "CheckpointLoader") {
			return name, true
		}
	}
	return "", false
}

func resolveSamplerClass(schemas map[string]interfaces.NodeSchema) (class string, isStock bool) {
	for i, name := range preferredSamplerClasses {
		if _, ok := schemas[name]; ok {
			return name, i == len(preferredSamplerClasses)-1
		}
	}
	return "", false
}

// enumStrings reads input.required.<field>[0] off class's schema — ComfyUI's
// introspection wraps each input spec as a 2-tuple of (enum list, config
// object); [0] is the list itself.
func enumStrings(schemas map[string]interfaces.NodeSchema, class, field string) ([]string, error) {
	schema, ok := schemas[class]
	if !ok {
		return nil, fmt.Errorf("class %q absent from object_info", class)
	}
	spec, ok := schema.Input.Required[field]
	if !ok || len(spec) == 0 {
		return nil, fmt.Errorf("class %q field %q enum is empty", class, field)
	}
	list, ok := spec[0].([]interface{})
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("class %q field %q enum is empty", class, field)
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("class %q field %q enum is empty", class, field)
	}
	return out, nil
}
