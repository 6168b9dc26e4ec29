package biomatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/authentix/biomatch/archive"
	"github.com/authentix/biomatch/dtw"
	"github.com/authentix/biomatch/gesture"
	"github.com/authentix/biomatch/index/identity"
	"github.com/authentix/biomatch/persistence"
)

// EnrollResult reports the outcome of an enrollment attempt. A false Success
// with a nil error means the sample itself was unusable; the error path is
// reserved for invalid input and storage failures.
type EnrollResult struct {
	Success bool
	Message string
}

// VerifyResult reports the outcome of a verification attempt.
type VerifyResult struct {
	// Success reports whether the verification could be evaluated at all.
	// It is true even when the probe does not match: a confident rejection
	// is a successful verification.
	Success bool

	// Match reports whether the probe was accepted for the claimed user.
	Match bool

	// Confidence is the similarity score backing the decision, in [0,1]
	// for gesture and [-1,1] for face and voice.
	Confidence float64

	// Reason explains how the decision was produced.
	Reason Reason

	Message string
}

// Stats is a point-in-time summary of enrollment state.
type Stats struct {
	FaceUsers      int
	FaceSamples    int
	VoiceUsers     int
	VoiceSamples   int
	GestureUsers   int
	GestureSamples int
}

// vectorModality bundles the identity index and enrollment archive of an
// embedding-based modality (face or voice). The mutex serializes the
// mutate-then-flush enrollment sequence; reads go through the index's own
// lock-free state.
type vectorModality struct {
	mu       sync.Mutex
	name     Modality
	artifact string
	index    *identity.Index
	archive  *archive.Store[[]float32]
}

// gestureModality holds the gesture enrollment archive. Gestures have no
// index; verification matches directly against the claimed user's samples.
type gestureModality struct {
	mu      sync.Mutex
	archive *archive.Store[gesture.Sequence]
}

// Engine is the multi-modal biometric matcher. It keeps all enrollment state
// in memory, writes through to one snapshot artifact per modality, and rolls
// in-memory state back when a flush fails. Safe for concurrent use.
type Engine struct {
	opts    options
	pm      *persistence.Manager
	face    *vectorModality
	voice   *vectorModality
	gesture *gestureModality

	mu     sync.RWMutex
	closed bool
}

// Open creates an engine rooted at the given data directory, recovering any
// previously persisted enrollment state. The three modality snapshots are
// loaded in parallel. A missing snapshot starts the modality empty; a corrupt
// one is logged and also starts empty, since the write-through flush will
// replace it on the next enrollment.
func Open(ctx context.Context, dir string, optFns ...Option) (*Engine, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	pm, err := persistence.NewManager(dir, func(o *persistence.Options) {
		o.Codec = opts.codec
		o.Mirror = opts.mirror
		o.MirrorRateBytes = opts.mirrorRateBytes
		o.Logger = opts.logger.Logger
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts: opts,
		pm:   pm,
		face: &vectorModality{
			name:     Face,
			artifact: faceArtifact,
		},
		voice: &vectorModality{
			name:     Voice,
			artifact: voiceArtifact,
		},
		gesture: &gestureModality{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.recoverVector(gctx, e.face, opts.faceDimension)
	})
	g.Go(func() error {
		return e.recoverVector(gctx, e.voice, opts.voiceDimension)
	})
	g.Go(func() error {
		return e.recoverGesture(gctx)
	})
	if err := g.Wait(); err != nil {
		_ = pm.Close()
		return nil, err
	}
	return e, nil
}

// recoverVector loads a face or voice snapshot into a fresh index and
// archive. Only a dimension disagreement between the snapshot and the
// configured dimension is fatal; it means the caller changed configuration
// over existing data.
func (e *Engine) recoverVector(ctx context.Context, m *vectorModality, dimension int) error {
	var snap vectorSnapshot
	err := e.pm.Load(ctx, m.artifact, &snap)
	switch {
	case errors.Is(err, os.ErrNotExist):
		snap = vectorSnapshot{Dimension: dimension}
	case err != nil:
		e.opts.logger.WarnContext(ctx, "snapshot unreadable, starting empty",
			"modality", m.name.String(),
			"error", err,
		)
		snap = vectorSnapshot{Dimension: dimension}
	}

	if snap.Dimension != dimension {
		return fmt.Errorf("%s snapshot has dimension %d, engine configured for %d",
			m.name, snap.Dimension, dimension)
	}

	idx, err := identity.FromEntries(dimension, snap.Vectors, snap.Labels)
	if err != nil {
		return fmt.Errorf("rebuild %s index: %w", m.name, err)
	}
	m.index = idx
	m.archive = archive.New[[]float32]()
	m.archive.Load(snap.Archive)

	if m.archive.Users() > 0 {
		e.opts.logger.LogRecovery(ctx, m.name, m.archive.Users(), m.archive.Len())
	}
	return nil
}

func (e *Engine) recoverGesture(ctx context.Context) error {
	var snap gestureSnapshot
	err := e.pm.Load(ctx, gestureArtifact, &snap)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		e.opts.logger.WarnContext(ctx, "snapshot unreadable, starting empty",
			"modality", Gesture.String(),
			"error", err,
		)
		snap = gestureSnapshot{}
	}

	e.gesture.archive = archive.New[gesture.Sequence]()
	e.gesture.archive.Load(snap.Archive)

	if e.gesture.archive.Users() > 0 {
		e.opts.logger.LogRecovery(ctx, Gesture, e.gesture.archive.Users(), e.gesture.archive.Len())
	}
	return nil
}

func (e *Engine) checkClosed() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrEngineClosed
	}
	return nil
}

// EnrollFace stores a face embedding for userID and flushes the face
// snapshot. An unusable sample (empty or degenerate embedding) yields an
// unsuccessful result with a nil error; errors are reserved for invalid
// input and storage failures.
func (e *Engine) EnrollFace(ctx context.Context, userID string, embedding []float32) (EnrollResult, error) {
	return e.enrollVector(ctx, e.face, userID, embedding)
}

// EnrollVoice stores a voice embedding for userID and flushes the voice
// snapshot. Semantics match EnrollFace.
func (e *Engine) EnrollVoice(ctx context.Context, userID string, embedding []float32) (EnrollResult, error) {
	return e.enrollVector(ctx, e.voice, userID, embedding)
}

func (e *Engine) enrollVector(ctx context.Context, m *vectorModality, userID string, embedding []float32) (_ EnrollResult, err error) {
	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordEnroll(m.name, time.Since(start), err)
	}()

	if err = e.checkClosed(); err != nil {
		return EnrollResult{}, err
	}
	if userID == "" {
		err = ErrEmptyUserID
		return EnrollResult{}, err
	}
	if len(embedding) == 0 {
		e.opts.logger.LogEnroll(ctx, m.name, userID, false, nil)
		return EnrollResult{Message: "no features extracted from sample"}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	indexSnap := m.index.Checkpoint()
	archiveSnap := m.archive.Checkpoint()

	if _, insertErr := m.index.Insert(ctx, embedding, userID); insertErr != nil {
		if errors.Is(insertErr, identity.ErrZeroVector) {
			e.opts.logger.LogEnroll(ctx, m.name, userID, false, nil)
			return EnrollResult{Message: "degenerate sample, no usable features"}, nil
		}
		err = translateError(insertErr)
		e.opts.logger.LogEnroll(ctx, m.name, userID, false, err)
		return EnrollResult{}, err
	}
	m.archive.Append(userID, slices.Clone(embedding))

	if flushErr := e.flushVector(ctx, m); flushErr != nil {
		m.index.Restore(indexSnap)
		m.archive.Restore(archiveSnap)
		err = storageError(flushErr)
		e.opts.logger.LogEnroll(ctx, m.name, userID, false, err)
		return EnrollResult{}, err
	}

	e.opts.logger.LogEnroll(ctx, m.name, userID, true, nil)
	return EnrollResult{Success: true, Message: fmt.Sprintf("%s enrolled", m.name)}, nil
}

// EnrollGesture stores a gesture recording for userID and flushes the
// gesture snapshot. The sequence is stored raw; normalization happens at
// comparison time so stored data is never lossy.
func (e *Engine) EnrollGesture(ctx context.Context, userID string, seq gesture.Sequence) (_ EnrollResult, err error) {
	start := time.Now()
	defer func() {
		e.opts.metricsCollector.RecordEnroll(Gesture, time.Since(start), err)
	}()

	if err = e.checkClosed(); err != nil {
		return EnrollResult{}, err
	}
	if userID == "" {
		err = ErrEmptyUserID
		return EnrollResult{}, err
	}
	if len(seq) == 0 {
		e.opts.logger.LogEnroll(ctx, Gesture, userID, false, nil)
		return EnrollResult{Message: "no readings in gesture recording"}, nil
	}
	if err = seq.Validate(); err != nil {
		e.opts.logger.LogEnroll(ctx, Gesture, userID, false, err)
		return EnrollResult{}, err
	}

	g := e.gesture
	g.mu.Lock()
	defer g.mu.Unlock()

	archiveSnap := g.archive.Checkpoint()
	g.archive.Append(userID, slices.Clone(seq))

	if flushErr := e.flushGesture(ctx); flushErr != nil {
		g.archive.Restore(archiveSnap)
		err = storageError(flushErr)
		e.opts.logger.LogEnroll(ctx, Gesture, userID, false, err)
		return EnrollResult{}, err
	}

	e.opts.logger.LogEnroll(ctx, Gesture, userID, true, nil)
	return EnrollResult{Success: true, Message: "gesture enrolled"}, nil
}

// VerifyFace compares a face embedding against userID's enrolled faces.
func (e *Engine) VerifyFace(ctx context.Context, userID string, embedding []float32) (VerifyResult, error) {
	return e.verifyVector(ctx, e.face, userID, embedding)
}

// VerifyVoice compares a voice embedding against userID's enrolled voices.
func (e *Engine) VerifyVoice(ctx context.Context, userID string, embedding []float32) (VerifyResult, error) {
	return e.verifyVector(ctx, e.voice, userID, embedding)
}

// verifyVector runs the ranked verification path: retrieve the top
// candidates across the whole index, then accept the first one that belongs
// to the claimed user and clears the threshold.
func (e *Engine) verifyVector(ctx context.Context, m *vectorModality, userID string, embedding []float32) (_ VerifyResult, err error) {
	start := time.Now()
	var matched bool
	defer func() {
		e.opts.metricsCollector.RecordVerify(m.name, matched, time.Since(start), err)
	}()

	if err = e.checkClosed(); err != nil {
		return VerifyResult{}, err
	}
	if userID == "" {
		err = ErrEmptyUserID
		return VerifyResult{}, err
	}
	if len(embedding) == 0 {
		res := VerifyResult{
			Reason:  ReasonExtractionFailed,
			Message: "no features extracted from sample",
		}
		e.opts.logger.LogVerify(ctx, m.name, userID, Decision{Reason: res.Reason}, nil)
		return res, nil
	}
	if len(embedding) != m.index.Dimension() {
		err = &ErrDimensionMismatch{Expected: m.index.Dimension(), Actual: len(embedding)}
		return VerifyResult{}, err
	}

	claimed := m.index.UserSlots(userID)
	if claimed.IsEmpty() {
		res := VerifyResult{
			Success: true,
			Reason:  ReasonNoEnrollment,
			Message: fmt.Sprintf("no %s enrollment for user", m.name),
		}
		e.opts.logger.LogVerify(ctx, m.name, userID, Decision{Reason: res.Reason}, nil)
		return res, nil
	}

	results, searchErr := m.index.Search(ctx, embedding, e.opts.searchK)
	if searchErr != nil {
		if errors.Is(searchErr, identity.ErrZeroVector) {
			res := VerifyResult{
				Reason:  ReasonExtractionFailed,
				Message: "degenerate sample, no usable features",
			}
			e.opts.logger.LogVerify(ctx, m.name, userID, Decision{Reason: res.Reason}, nil)
			return res, nil
		}
		err = translateError(searchErr)
		e.opts.logger.LogVerify(ctx, m.name, userID, Decision{}, err)
		return VerifyResult{}, err
	}

	d := evaluateRank(results, claimed, e.opts.policy.threshold(m.name))
	matched = d.Matched
	e.opts.logger.LogVerify(ctx, m.name, userID, d, nil)
	return VerifyResult{
		Success:    true,
		Match:      d.Matched,
		Confidence: d.Confidence,
		Reason:     d.Reason,
	}, nil
}

// VerifyGesture compares a gesture recording against all of userID's
// enrolled gestures. Both the probe and each enrolled sequence are z-score
// normalized per channel, distances are computed with dynamic time warping,
// and the best (smallest) distance is scaled into a similarity score.
// Confidence reports that similarity even when the decision is a miss.
func (e *Engine) VerifyGesture(ctx context.Context, userID string, seq gesture.Sequence) (_ VerifyResult, err error) {
	start := time.Now()
	var matched bool
	defer func() {
		e.opts.metricsCollector.RecordVerify(Gesture, matched, time.Since(start), err)
	}()

	if err = e.checkClosed(); err != nil {
		return VerifyResult{}, err
	}
	if userID == "" {
		err = ErrEmptyUserID
		return VerifyResult{}, err
	}
	if len(seq) == 0 {
		res := VerifyResult{
			Reason:  ReasonExtractionFailed,
			Message: "no readings in gesture recording",
		}
		e.opts.logger.LogVerify(ctx, Gesture, userID, Decision{Reason: res.Reason}, nil)
		return res, nil
	}
	if err = seq.Validate(); err != nil {
		return VerifyResult{}, err
	}

	enrolled := e.gesture.archive.Samples(userID)
	if len(enrolled) == 0 {
		res := VerifyResult{
			Success: true,
			Reason:  ReasonNoEnrollment,
			Message: "no gesture enrollment for user",
		}
		e.opts.logger.LogVerify(ctx, Gesture, userID, Decision{Reason: res.Reason}, nil)
		return res, nil
	}

	probe, err := gesture.Normalize(seq)
	if err != nil {
		return VerifyResult{}, err
	}
	references := make([]gesture.Sequence, 0, len(enrolled))
	for _, s := range enrolled {
		ref, normErr := gesture.Normalize(s)
		if normErr != nil {
			err = normErr
			return VerifyResult{}, err
		}
		references = append(references, ref)
	}

	best, err := dtw.BestMatch(probe, references)
	if err != nil {
		return VerifyResult{}, err
	}

	similarity := dtw.Similarity(best, e.opts.policy.GestureMaxDistance)
	d := evaluateScore(similarity, e.opts.policy.GestureThreshold)
	matched = d.Matched
	e.opts.logger.LogVerify(ctx, Gesture, userID, d, nil)
	return VerifyResult{
		Success:    true,
		Match:      d.Matched,
		Confidence: d.Confidence,
		Reason:     d.Reason,
	}, nil
}

// Stats returns the current enrollment counts per modality.
func (e *Engine) Stats() Stats {
	return Stats{
		FaceUsers:      e.face.archive.Users(),
		FaceSamples:    e.face.archive.Len(),
		VoiceUsers:     e.voice.archive.Users(),
		VoiceSamples:   e.voice.archive.Len(),
		GestureUsers:   e.gesture.archive.Users(),
		GestureSamples: e.gesture.archive.Len(),
	}
}

// Close flushes all modality snapshots and releases persistence resources.
// Subsequent operations return ErrEngineClosed. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	ctx := context.Background()
	var errs []error

	e.face.mu.Lock()
	errs = append(errs, e.flushVector(ctx, e.face))
	e.face.mu.Unlock()

	e.voice.mu.Lock()
	errs = append(errs, e.flushVector(ctx, e.voice))
	e.voice.mu.Unlock()

	e.gesture.mu.Lock()
	errs = append(errs, e.flushGesture(ctx))
	e.gesture.mu.Unlock()

	errs = append(errs, e.pm.Close())
	return errors.Join(errs...)
}

// flushVector writes a face or voice modality's full state as one artifact.
// Callers hold the modality mutex.
func (e *Engine) flushVector(ctx context.Context, m *vectorModality) error {
	start := time.Now()
	vectors, labels := m.index.Entries()
	err := e.pm.Save(ctx, m.artifact, vectorSnapshot{
		Dimension: m.index.Dimension(),
		Vectors:   vectors,
		Labels:    labels,
		Archive:   m.archive.Export(),
	})
	e.opts.metricsCollector.RecordFlush(m.name, time.Since(start), err)
	e.opts.logger.LogFlush(ctx, m.name, err)
	return err
}

// flushGesture writes the gesture archive as one artifact.
// Callers hold the gesture mutex.
func (e *Engine) flushGesture(ctx context.Context) error {
	start := time.Now()
	err := e.pm.Save(ctx, gestureArtifact, gestureSnapshot{
		Archive: e.gesture.archive.Export(),
	})
	e.opts.metricsCollector.RecordFlush(Gesture, time.Since(start), err)
	e.opts.logger.LogFlush(ctx, Gesture, err)
	return err
}
