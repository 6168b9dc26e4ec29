// Package identity provides the similarity-searchable identity index used
// for face and voice verification.
//
// The index is an append-only flat structure: every inserted vector is
// assigned the next sequential slot id, and slot ids are never reused or
// removed. Each slot carries a user label; per-user slot sets are tracked as
// Roaring bitmaps so the verification path can filter ranked results to the
// claimed user without string comparisons.
//
// Search ranks by descending inner product, which equals cosine similarity
// because all stored vectors and queries are L2-normalized. A linear scan is
// acceptable at the target scale; a production scale-out would swap in an
// approximate index transparently behind the same contract.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/authentix/biomatch/distance"
	"github.com/authentix/biomatch/internal/queue"
)

var (
	// ErrEmptyVector is returned when an empty vector is inserted or searched.
	ErrEmptyVector = errors.New("identity: empty vector")

	// ErrZeroVector is returned when a vector cannot be L2-normalized.
	ErrZeroVector = errors.New("identity: cannot normalize zero vector")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("identity: k must be positive")

	// ErrEmptyLabel is returned when a vector is inserted without a user label.
	ErrEmptyLabel = errors.New("identity: empty user label")
)

// ErrDimensionMismatch indicates a vector whose length disagrees with the
// index's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("identity: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidDimension indicates an invalid configured dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("identity: invalid dimension: %d", e.Dimension)
}

// ErrSlotNotFound indicates a label lookup for a slot id never inserted.
type ErrSlotNotFound struct {
	Slot uint32
}

func (e *ErrSlotNotFound) Error() string {
	return fmt.Sprintf("identity: slot %d not found", e.Slot)
}

// Result is a single ranked search hit.
type Result struct {
	Slot  uint32  // Slot id of the stored vector
	Score float32 // Inner product with the query (cosine similarity)
}

// indexState holds the immutable state of the index for lock-free reads.
type indexState struct {
	vectors [][]float32
	labels  []string
	byUser  map[string]*roaring.Bitmap
}

// Snapshot is an opaque capture of the index state, used by the engine to
// roll back an insert whose durability flush failed.
type Snapshot struct {
	st *indexState
}

// Index is the append-only identity index. It uses a copy-on-write pattern
// for lock-free concurrent reads; writes are serialized by a single mutex.
type Index struct {
	state     atomic.Value // holds *indexState
	writeMu   sync.Mutex   // serializes writes only
	dimension int          // immutable after construction
}

// New creates an empty identity index with the given fixed vector dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}
	i := &Index{dimension: dimension}
	i.state.Store(&indexState{
		byUser: make(map[string]*roaring.Bitmap),
	})
	return i, nil
}

// FromEntries rebuilds an index from persisted vectors and labels, e.g. at
// startup recovery. The two slices must be parallel: labels[i] owns
// vectors[i] at slot i.
func FromEntries(dimension int, vectors [][]float32, labels []string) (*Index, error) {
	if len(vectors) != len(labels) {
		return nil, fmt.Errorf("identity: %d vectors but %d labels", len(vectors), len(labels))
	}
	idx, err := New(dimension)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	for i, v := range vectors {
		if _, err := idx.Insert(ctx, v, labels[i]); err != nil {
			return nil, fmt.Errorf("identity: rebuild slot %d: %w", i, err)
		}
	}
	return idx, nil
}

func (i *Index) getState() *indexState {
	return i.state.Load().(*indexState)
}

// cloneState creates a copy of the current state for copy-on-write. The
// bitmap map is cloned shallowly; Insert replaces only the touched bitmap.
func (i *Index) cloneState(st *indexState) *indexState {
	newVectors := make([][]float32, len(st.vectors), len(st.vectors)+1)
	copy(newVectors, st.vectors)

	newLabels := make([]string, len(st.labels), len(st.labels)+1)
	copy(newLabels, st.labels)

	newByUser := make(map[string]*roaring.Bitmap, len(st.byUser))
	for user, bm := range st.byUser {
		newByUser[user] = bm
	}

	return &indexState{
		vectors: newVectors,
		labels:  newLabels,
		byUser:  newByUser,
	}
}

// Dimension returns the fixed vector dimension of the index.
func (i *Index) Dimension() int { return i.dimension }

// Len returns the number of vectors in the index.
func (i *Index) Len() int {
	return len(i.getState().vectors)
}

// Insert appends v to the index under the given user label and returns the
// assigned slot id. The vector is L2-normalized before storage so that
// inner-product search equals cosine ranking.
func (i *Index) Insert(ctx context.Context, v []float32, userID string) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, ErrEmptyVector
	}
	if userID == "" {
		return 0, ErrEmptyLabel
	}
	if len(v) != i.dimension {
		return 0, &ErrDimensionMismatch{Expected: i.dimension, Actual: len(v)}
	}

	vec, ok := distance.NormalizeL2Copy(v)
	if !ok {
		return 0, ErrZeroVector
	}

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	oldState := i.getState()
	newState := i.cloneState(oldState)

	slot := uint32(len(newState.vectors))
	newState.vectors = append(newState.vectors, vec)
	newState.labels = append(newState.labels, userID)

	bm := roaring.New()
	if existing, ok := newState.byUser[userID]; ok {
		bm = existing.Clone()
	}
	bm.Add(slot)
	newState.byUser[userID] = bm

	i.state.Store(newState)
	return slot, nil
}

// Search returns up to k entries ranked by descending inner product with q.
// k is clamped to the index's current size; an empty index yields an empty
// result. The query is normalized before comparison.
func (i *Index) Search(ctx context.Context, q []float32, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(q) != i.dimension {
		return nil, &ErrDimensionMismatch{Expected: i.dimension, Actual: len(q)}
	}

	st := i.getState()
	if len(st.vectors) == 0 {
		return nil, nil
	}

	query, ok := distance.NormalizeL2Copy(q)
	if !ok {
		return nil, ErrZeroVector
	}

	if k > len(st.vectors) {
		k = len(st.vectors)
	}

	// Min-heap over scores: the top is the worst of the current best k,
	// so each candidate costs one compare and at most one heap operation.
	top := queue.NewMin(k)
	for slot, vec := range st.vectors {
		score := distance.Dot(query, vec)
		if top.Len() < k {
			top.Push(queue.Item{Slot: uint32(slot), Score: score})
			continue
		}
		if worst, _ := top.Top(); score > worst.Score {
			top.Pop()
			top.Push(queue.Item{Slot: uint32(slot), Score: score})
		}
	}

	results := make([]Result, top.Len())
	for pos := top.Len() - 1; pos >= 0; pos-- {
		item, _ := top.Pop()
		results[pos] = Result{Slot: item.Slot, Score: item.Score}
	}
	return results, nil
}

// Label returns the owning user for a slot id.
func (i *Index) Label(slot uint32) (string, error) {
	st := i.getState()
	if int(slot) >= len(st.labels) {
		return "", &ErrSlotNotFound{Slot: slot}
	}
	return st.labels[slot], nil
}

// UserSlots returns the set of slot ids labeled with userID. The returned
// bitmap is a snapshot view; it reflects the index state at call time.
func (i *Index) UserSlots(userID string) *roaring.Bitmap {
	st := i.getState()
	if bm, ok := st.byUser[userID]; ok {
		return bm
	}
	return roaring.New()
}

// Entries returns the stored vectors and their parallel labels for
// serialization. Both slices alias internal immutable state; callers must
// not mutate them.
func (i *Index) Entries() (vectors [][]float32, labels []string) {
	st := i.getState()
	return st.vectors, st.labels
}

// Checkpoint captures the index's current immutable state in O(1).
func (i *Index) Checkpoint() Snapshot {
	return Snapshot{st: i.getState()}
}

// Restore swaps a previously captured state back in. Used by the engine to
// keep durable and in-memory state consistent when a flush fails.
func (i *Index) Restore(snap Snapshot) {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()
	i.state.Store(snap.st)
}
