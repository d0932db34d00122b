package models

// MaxEnumChoices caps how many entries of a list are surfaced in a Discord
// select menu; MaxEnumOptions caps how many adapters the resolved catalog
// keeps at all.
const (
	MaxEnumChoices = 25  // Discord select-menu option limit
	MaxEnumOptions = 100 // upper bound on adapters kept in the resolved catalog
)

// NodeCatalog is the frozen set of checkpoints, samplers, schedulers and
// adapters the renderer reported at boot, resolved once via object_info()
// and never refreshed during the process lifetime (see internal/catalog).
type NodeCatalog struct {
	Checkpoints []string
	Samplers    []string
	Schedulers  []string
	Adapters    []string

	CheckpointNode string
	SamplerNode    string
}

// Truncate returns at most n entries from choices, preserving order.
func Truncate(choices []string, n int) []string {
	if len(choices) <= n {
		return choices
	}
	return choices[:n]
}
