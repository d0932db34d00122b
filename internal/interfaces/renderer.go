package interfaces

import "context"

// Graph is a node-id to node mapping submitted to the renderer.
type Graph map[string]GraphNode

// GraphNode is one node in a Graph: a class name plus its input values,
// which may be literals or [source_node_id, output_index] references.
type GraphNode struct {
	ClassType string                 `json:"class_type"`
	Inputs    map[string]interface{} `json:"inputs"`
}

// HistoryImage is one output image descriptor from a history entry.
type HistoryImage struct {
	Filename string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// HistoryEntry is the renderer's report for one submitted prompt.
type HistoryEntry struct {
	Completed bool
	StatusStr string
	Outputs   map[string][]HistoryImage
}

// UploadResult is the renderer's response to an image upload.
type UploadResult struct {
	Name      string
	Subfolder string
	Type      string
}

// RendererClient is a typed HTTP client to the image-generation backend.
// The client never retries; retry policy belongs to callers.
type RendererClient interface {
	Ping(ctx context.Context) bool
	ObjectInfo(ctx context.Context) (map[string]NodeSchema, error)
	Submit(ctx context.Context, graph Graph) (backendPromptID string, err error)
	History(ctx context.Context, backendPromptID string) (*HistoryEntry, error)
	FetchImage(ctx context.Context, filename, subfolder, typ string) ([]byte, error)
	UploadImage(ctx context.Context, data []byte, filename string) (*UploadResult, error)
	AdapterHash(ctx context.Context, filename string) (string, bool, error)
	AdapterTriggerWordsLocal(ctx context.Context, filename string) ([]string, bool, error)
}

// NodeSchema is the portion of object_info()'s per-class schema the catalog
// resolver needs: required input names to their enum/value lists.
type NodeSchema struct {
	Input struct {
		Required map[string][]interface{} `json:"required"`
	} `json:"input"`
}
