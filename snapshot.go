package biomatch

import "github.com/authentix/biomatch/gesture"

// Snapshot artifact names, one per modality. Each artifact carries the whole
// durable state of its modality so a single atomic rename replaces it.
const (
	faceArtifact    = "face.snapshot"
	voiceArtifact   = "voice.snapshot"
	gestureArtifact = "gesture.snapshot"
)

// vectorSnapshot is the serialized form of a face or voice modality: the
// identity index entries (vectors plus parallel slot labels) and the raw
// per-user enrollment archive.
type vectorSnapshot struct {
	Dimension int                    `json:"dimension"`
	Vectors   [][]float32            `json:"vectors"`
	Labels    []string               `json:"labels"`
	Archive   map[string][][]float32 `json:"archive"`
}

// gestureSnapshot is the serialized form of the gesture modality.
type gestureSnapshot struct {
	Archive map[string][]gesture.Sequence `json:"archive"`
}
