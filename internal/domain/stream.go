package domain

// StreamEventType discriminates the events produced by a streaming answer.
type StreamEventType string

const (
	// StreamEventChunk carries one opaque fragment of the answer text.
	// Concatenating all chunk fragments in order yields the full answer.
	StreamEventChunk StreamEventType = "chunk"
	// StreamEventCitations carries the complete citation list, emitted
	// exactly once after the final chunk.
	StreamEventCitations StreamEventType = "citations"
	// StreamEventMetadata carries retrieval statistics, emitted exactly
	// once after the citations event.
	StreamEventMetadata StreamEventType = "metadata"
	// StreamEventError terminates the stream. No events follow it, and
	// nothing is cached for the request.
	StreamEventError StreamEventType = "error"
)

// StreamMetadata is the payload of the metadata event.
type StreamMetadata struct {
	ChunksRetrieved   int        `json:"chunks_retrieved"`
	Confidence        Confidence `json:"confidence"`
	AvgRetrievalScore float64    `json:"avg_retrieval_score,omitempty"`
}

// StreamEvent is one element of a streaming answer. Exactly one of the
// payload fields is meaningful, selected by Type. Errors are carried as a
// tagged event rather than a channel-side error so the ordering guarantee
// ("no events after an error") is explicit in the sequence itself.
type StreamEvent struct {
	Type      StreamEventType
	Chunk     string
	Citations []Citation
	Metadata  StreamMetadata
	Err       error
}

// ChunkEvent builds an answer-fragment event.
func ChunkEvent(fragment string) StreamEvent {
	return StreamEvent{Type: StreamEventChunk, Chunk: fragment}
}

// CitationsEvent builds the citations event.
func CitationsEvent(citations []Citation) StreamEvent {
	if citations == nil {
		citations = []Citation{}
	}
	return StreamEvent{Type: StreamEventCitations, Citations: citations}
}

// MetadataEvent builds the metadata event.
func MetadataEvent(md StreamMetadata) StreamEvent {
	return StreamEvent{Type: StreamEventMetadata, Metadata: md}
}

// ErrorEvent builds the terminal error event.
func ErrorEvent(err error) StreamEvent {
	return StreamEvent{Type: StreamEventError, Err: err}
}
