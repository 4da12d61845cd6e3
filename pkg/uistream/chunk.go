// Package uistream encodes and decodes the UI message stream: server-sent events
// carrying one JSON chunk per event, terminated by a literal [DONE] payload.
package uistream

const (
	HeaderName  = "x-vercel-ai-ui-message-stream"
	HeaderValue = "v1"

	donePayload = "[DONE]"
)

type ChunkType string

const (
	ChunkStart      ChunkType = "start"
	ChunkStartStep  ChunkType = "start-step"
	ChunkTextStart  ChunkType = "text-start"
	ChunkTextDelta  ChunkType = "text-delta"
	ChunkTextEnd    ChunkType = "text-end"
	ChunkFinishStep ChunkType = "finish-step"
	ChunkFinish     ChunkType = "finish"
	ChunkError      ChunkType = "error"
)

// Chunk is a single stream event. Fields not used by a chunk type stay empty.
type Chunk struct {
	Type      ChunkType `json:"type"`
	ID        string    `json:"id,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Delta     string    `json:"delta,omitempty"`
	ErrorText string    `json:"errorText,omitempty"`
}
