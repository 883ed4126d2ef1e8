package wire

// RawSource is the heterogeneous shape the retrieval pipeline emits:
// identity and excerpt at the top level, document attribution nested
// under snake_case metadata, and relevance either as a score or as a
// raw vector distance depending on backend version.
type RawSource struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata SourceMetadata `json:"metadata"`
	Score    *float64       `json:"score,omitempty"`
	Distance *float64       `json:"distance,omitempty"`
}

// SourceMetadata is the chunk attribution block attached to a raw
// source. Fields are optional because older ingestion runs only wrote
// chunk_index.
type SourceMetadata struct {
	DocumentID   *int64 `json:"document_id,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
	ChunkIndex   *int   `json:"chunk_index,omitempty"`
	PageNumber   *int   `json:"page_number,omitempty"`
}

// SourceReference is the canonical shape handed to the UI and attached
// to finalized assistant messages.
type SourceReference struct {
	DocumentID      int64   `json:"document_id"`
	DocumentName    string  `json:"document_name"`
	ChunkIndex      int     `json:"chunk_index"`
	PageNumber      *int    `json:"page_number,omitempty"`
	SimilarityScore float64 `json:"similarity_score"`
	Content         string  `json:"content"`
}

// Normalize converts a raw source into the canonical reference shape.
// Relevance prefers an explicit score; otherwise it is derived from
// cosine distance and clamped to [0, 1].
func (s RawSource) Normalize() SourceReference {
	ref := SourceReference{
		DocumentName:    s.Metadata.DocumentName,
		PageNumber:      s.Metadata.PageNumber,
		SimilarityScore: s.similarity(),
		Content:         s.Content,
	}
	if s.Metadata.DocumentID != nil {
		ref.DocumentID = *s.Metadata.DocumentID
	}
	if s.Metadata.ChunkIndex != nil {
		ref.ChunkIndex = *s.Metadata.ChunkIndex
	}
	return ref
}

// NormalizeSources converts a raw source list, preserving order.
func NormalizeSources(raw []RawSource) []SourceReference {
	if len(raw) == 0 {
		return nil
	}
	refs := make([]SourceReference, len(raw))
	for i, s := range raw {
		refs[i] = s.Normalize()
	}
	return refs
}

func (s RawSource) similarity() float64 {
	if s.Score != nil {
		return clamp01(*s.Score)
	}
	if s.Distance != nil {
		return clamp01(1.0 - *s.Distance)
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
