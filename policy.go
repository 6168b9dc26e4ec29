package biomatch

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/authentix/biomatch/index/identity"
)

// Modality identifies a biometric channel.
type Modality int

const (
	Face Modality = iota
	Voice
	Gesture
)

// String implements fmt.Stringer.
func (m Modality) String() string {
	switch m {
	case Face:
		return "face"
	case Voice:
		return "voice"
	case Gesture:
		return "gesture"
	default:
		return "unknown"
	}
}

// Reason explains how a verification decision was produced.
type Reason int

const (
	// ReasonEvaluated means enrolled samples were compared against the probe.
	ReasonEvaluated Reason = iota

	// ReasonExtractionFailed means no usable features could be extracted
	// from the probe, so no comparison took place.
	ReasonExtractionFailed

	// ReasonNoEnrollment means the claimed user has no enrolled samples
	// for this modality.
	ReasonNoEnrollment
)

// String implements fmt.Stringer.
func (r Reason) String() string {
	switch r {
	case ReasonEvaluated:
		return "evaluated"
	case ReasonExtractionFailed:
		return "extraction_failed"
	case ReasonNoEnrollment:
		return "no_enrollment"
	default:
		return "unknown"
	}
}

// Decision is the outcome of a threshold evaluation.
type Decision struct {
	Matched    bool
	Confidence float64
	Reason     Reason
}

// Policy holds the per-modality acceptance thresholds. A comparison score
// must be strictly greater than the threshold to count as a match; a score
// exactly at the threshold is rejected.
type Policy struct {
	// FaceThreshold is the minimum cosine similarity for a face match.
	FaceThreshold float64

	// VoiceThreshold is the minimum cosine similarity for a voice match.
	VoiceThreshold float64

	// GestureThreshold is the minimum DTW similarity for a gesture match.
	GestureThreshold float64

	// GestureMaxDistance scales raw DTW distance into [0,1] similarity:
	// similarity = 1 - distance/GestureMaxDistance, clamped at zero.
	GestureMaxDistance float64
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		FaceThreshold:      0.75,
		VoiceThreshold:     0.75,
		GestureThreshold:   0.70,
		GestureMaxDistance: 100,
	}
}

// threshold returns the acceptance threshold for a modality.
func (p Policy) threshold(m Modality) float64 {
	switch m {
	case Face:
		return p.FaceThreshold
	case Voice:
		return p.VoiceThreshold
	default:
		return p.GestureThreshold
	}
}

// evaluateRank scans ranked search results in order and accepts the first
// hit that both belongs to the claimed user's slot set and scores strictly
// above the threshold. A miss yields zero confidence: a high score against
// somebody else's enrollment is no evidence for the claimed identity.
func evaluateRank(results []identity.Result, claimed *roaring.Bitmap, threshold float64) Decision {
	for _, r := range results {
		if !claimed.Contains(r.Slot) {
			continue
		}
		if float64(r.Score) > threshold {
			return Decision{
				Matched:    true,
				Confidence: float64(r.Score),
				Reason:     ReasonEvaluated,
			}
		}
	}
	return Decision{Reason: ReasonEvaluated}
}

// evaluateScore applies the strictly-greater rule to a single similarity
// score. Unlike the ranked path, the score is reported as confidence even on
// a miss: the comparison did run against the claimed user's own samples.
func evaluateScore(score, threshold float64) Decision {
	return Decision{
		Matched:    score > threshold,
		Confidence: score,
		Reason:     ReasonEvaluated,
	}
}
