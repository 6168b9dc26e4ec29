package biomatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authentix/biomatch/blobstore"
	"github.com/authentix/biomatch/gesture"
	"github.com/authentix/biomatch/testutil"
)

func newTestEngine(t *testing.T, optFns ...Option) *Engine {
	t.Helper()
	opts := append([]Option{
		WithFaceDimension(3),
		WithVoiceDimension(3),
	}, optFns...)
	e, err := Open(context.Background(), t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEnrollAndVerifyFace(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	// alice's enrollment scores 0.81 against the probe, bob's 0.40.
	alice := []float32{0.81, float32(math.Sqrt(1 - 0.81*0.81)), 0}
	bob := []float32{0.40, 0, float32(math.Sqrt(1 - 0.40*0.40))}
	probe := []float32{1, 0, 0}

	res, err := e.EnrollFace(ctx, "alice", alice)
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = e.EnrollFace(ctx, "bob", bob)
	require.NoError(t, err)
	assert.True(t, res.Success)

	t.Run("Match", func(t *testing.T) {
		v, err := e.VerifyFace(ctx, "alice", probe)
		require.NoError(t, err)
		assert.True(t, v.Success)
		assert.True(t, v.Match)
		assert.InDelta(t, 0.81, v.Confidence, 1e-4)
		assert.Equal(t, ReasonEvaluated, v.Reason)
	})

	t.Run("BelowThreshold", func(t *testing.T) {
		v, err := e.VerifyFace(ctx, "bob", probe)
		require.NoError(t, err)
		assert.True(t, v.Success)
		assert.False(t, v.Match)
		assert.Zero(t, v.Confidence)
		assert.Equal(t, ReasonEvaluated, v.Reason)
	})

	t.Run("HighScoreAgainstOtherUserIsNoEvidence", func(t *testing.T) {
		// The probe is nearly identical to alice's face, but claiming bob
		// must not benefit from alice's enrollment.
		v, err := e.VerifyFace(ctx, "bob", alice)
		require.NoError(t, err)
		assert.False(t, v.Match)
	})
}

func TestVerifyNoEnrollment(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	v, err := e.VerifyFace(ctx, "nobody", []float32{1, 0, 0})
	require.NoError(t, err)
	assert.True(t, v.Success)
	assert.False(t, v.Match)
	assert.Zero(t, v.Confidence)
	assert.Equal(t, ReasonNoEnrollment, v.Reason)

	g, err := e.VerifyGesture(ctx, "nobody", testutil.SineSequence(20, 0, 0, testutil.NewRNG(1)))
	require.NoError(t, err)
	assert.True(t, g.Success)
	assert.False(t, g.Match)
	assert.Equal(t, ReasonNoEnrollment, g.Reason)
}

func TestExtractionFailure(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	t.Run("EnrollNilSample", func(t *testing.T) {
		res, err := e.EnrollFace(ctx, "alice", nil)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Message)
	})

	t.Run("VerifyNilSample", func(t *testing.T) {
		v, err := e.VerifyVoice(ctx, "alice", nil)
		require.NoError(t, err)
		assert.False(t, v.Success)
		assert.False(t, v.Match)
		assert.Equal(t, ReasonExtractionFailed, v.Reason)
	})

	t.Run("VerifyZeroVector", func(t *testing.T) {
		_, err := e.EnrollFace(ctx, "alice", []float32{1, 0, 0})
		require.NoError(t, err)

		v, err := e.VerifyFace(ctx, "alice", []float32{0, 0, 0})
		require.NoError(t, err)
		assert.False(t, v.Success)
		assert.Equal(t, ReasonExtractionFailed, v.Reason)
	})

	t.Run("EnrollEmptyGesture", func(t *testing.T) {
		res, err := e.EnrollGesture(ctx, "alice", nil)
		require.NoError(t, err)
		assert.False(t, res.Success)
	})
}

func TestInputValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	t.Run("EmptyUserID", func(t *testing.T) {
		_, err := e.EnrollFace(ctx, "", []float32{1, 0, 0})
		assert.ErrorIs(t, err, ErrEmptyUserID)

		_, err = e.VerifyFace(ctx, "", []float32{1, 0, 0})
		assert.ErrorIs(t, err, ErrEmptyUserID)
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		var dimErr *ErrDimensionMismatch

		_, err := e.EnrollFace(ctx, "alice", []float32{1, 0})
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 3, dimErr.Expected)
		assert.Equal(t, 2, dimErr.Actual)

		_, err = e.VerifyFace(ctx, "alice", []float32{1, 0, 0, 0})
		assert.ErrorAs(t, err, &dimErr)
	})

	t.Run("MalformedGesture", func(t *testing.T) {
		bad := gesture.Sequence{{AccelX: math.NaN()}}
		_, err := e.EnrollGesture(ctx, "alice", bad)
		var malformed *gesture.ErrMalformedReading
		assert.ErrorAs(t, err, &malformed)
	})
}

func TestEnrollAndVerifyGesture(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	rng := testutil.NewRNG(7)

	// The same gesture performed at two speeds: 50 readings enrolled,
	// 60-reading probe. Warping should absorb the time stretch.
	enrolled := testutil.SineSequence(50, 0, 0, rng)
	probe := testutil.SineSequence(60, 0, 0, rng)

	res, err := e.EnrollGesture(ctx, "carol", enrolled)
	require.NoError(t, err)
	assert.True(t, res.Success)

	v, err := e.VerifyGesture(ctx, "carol", probe)
	require.NoError(t, err)
	assert.True(t, v.Success)
	assert.True(t, v.Match)
	assert.Greater(t, v.Confidence, 0.70)
	assert.LessOrEqual(t, v.Confidence, 1.0)
}

func TestGestureConfidenceReportedOnMiss(t *testing.T) {
	ctx := context.Background()

	// A tiny distance ceiling turns any nonzero warping distance into a
	// similarity near zero, forcing a miss without synthesizing a
	// pathological gesture.
	policy := DefaultPolicy()
	policy.GestureMaxDistance = 1e-9
	e := newTestEngine(t, WithPolicy(policy))

	rng := testutil.NewRNG(7)
	_, err := e.EnrollGesture(ctx, "carol", testutil.SineSequence(50, 0, 0.05, rng))
	require.NoError(t, err)

	v, err := e.VerifyGesture(ctx, "carol", testutil.SineSequence(50, 0, 0.05, rng))
	require.NoError(t, err)
	assert.True(t, v.Success)
	assert.False(t, v.Match)
	assert.Equal(t, ReasonEvaluated, v.Reason)
	assert.GreaterOrEqual(t, v.Confidence, 0.0)
	assert.Less(t, v.Confidence, 0.70)
}

func TestWriteThroughSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rng := testutil.NewRNG(11)

	face := rng.UnitVector(3)
	voiceSample := rng.UnitVector(3)
	seq := testutil.SineSequence(40, 0, 0, rng)

	e, err := Open(ctx, dir, WithFaceDimension(3), WithVoiceDimension(3))
	require.NoError(t, err)
	_, err = e.EnrollFace(ctx, "alice", face)
	require.NoError(t, err)
	_, err = e.EnrollVoice(ctx, "alice", voiceSample)
	require.NoError(t, err)
	_, err = e.EnrollGesture(ctx, "alice", seq)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	reopened, err := Open(ctx, dir, WithFaceDimension(3), WithVoiceDimension(3))
	require.NoError(t, err)
	defer reopened.Close()

	stats := reopened.Stats()
	assert.Equal(t, 1, stats.FaceUsers)
	assert.Equal(t, 1, stats.FaceSamples)
	assert.Equal(t, 1, stats.VoiceUsers)
	assert.Equal(t, 1, stats.GestureSamples)

	v, err := reopened.VerifyFace(ctx, "alice", face)
	require.NoError(t, err)
	assert.True(t, v.Match)

	v, err = reopened.VerifyVoice(ctx, "alice", voiceSample)
	require.NoError(t, err)
	assert.True(t, v.Match)

	v, err = reopened.VerifyGesture(ctx, "alice", seq)
	require.NoError(t, err)
	assert.True(t, v.Match)
}

func TestReopenWithDifferentDimensionFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	e, err := Open(ctx, dir, WithFaceDimension(3), WithVoiceDimension(3))
	require.NoError(t, err)
	_, err = e.EnrollFace(ctx, "alice", []float32{1, 0, 0})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = Open(ctx, dir, WithFaceDimension(4), WithVoiceDimension(3))
	assert.Error(t, err)
}

func TestFlushFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	e, err := Open(ctx, dir, WithFaceDimension(3), WithVoiceDimension(3))
	require.NoError(t, err)
	defer e.Close()

	// A directory squatting on the artifact path makes the atomic rename
	// fail, simulating a storage failure mid-flush.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "face.snapshot"), 0o755))

	_, err = e.EnrollFace(ctx, "alice", []float32{1, 0, 0})
	require.ErrorIs(t, err, ErrStorage)

	// The failed enrollment must not be visible in memory either.
	v, err := e.VerifyFace(ctx, "alice", []float32{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, ReasonNoEnrollment, v.Reason)
	assert.Zero(t, e.Stats().FaceSamples)
}

func TestEngineClosed(t *testing.T) {
	ctx := context.Background()
	e, err := Open(ctx, t.TempDir(), WithFaceDimension(3), WithVoiceDimension(3))
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.EnrollFace(ctx, "alice", []float32{1, 0, 0})
	assert.ErrorIs(t, err, ErrEngineClosed)
	_, err = e.VerifyGesture(ctx, "alice", testutil.SineSequence(10, 0, 0, testutil.NewRNG(1)))
	assert.ErrorIs(t, err, ErrEngineClosed)
}

func TestConcurrentEnrollments(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	rng := testutil.NewRNG(23)

	const n = 16
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = rng.UnitVector(3)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.EnrollVoice(ctx, fmt.Sprintf("user-%02d", i), vectors[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "enrollment %d", i)
	}
	stats := e.Stats()
	assert.Equal(t, n, stats.VoiceUsers)
	assert.Equal(t, n, stats.VoiceSamples)
}

func TestSnapshotMirror(t *testing.T) {
	ctx := context.Background()
	mirror := blobstore.NewMemoryStore()
	e := newTestEngine(t, WithSnapshotMirror(mirror, 0))

	_, err := e.EnrollFace(ctx, "alice", []float32{1, 0, 0})
	require.NoError(t, err)

	data, err := mirror.Get(ctx, "face.snapshot")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestMetricsCollection(t *testing.T) {
	ctx := context.Background()
	collector := &BasicMetricsCollector{}
	e := newTestEngine(t, WithMetricsCollector(collector))

	_, err := e.EnrollFace(ctx, "alice", []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = e.VerifyFace(ctx, "alice", []float32{1, 0, 0})
	require.NoError(t, err)
	_, err = e.VerifyFace(ctx, "alice", []float32{0, 1, 0})
	require.NoError(t, err)

	stats := collector.GetStats()
	assert.Equal(t, int64(1), stats.EnrollCount)
	assert.Equal(t, int64(2), stats.VerifyCount)
	assert.Equal(t, int64(1), stats.VerifyMatches)
	assert.GreaterOrEqual(t, stats.FlushCount, int64(1))
	assert.Zero(t, stats.EnrollErrors)
}

func TestMultipleEnrollmentsPerUser(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	// Two face enrollments for the same user; a probe close to either
	// should match.
	first := []float32{1, 0, 0}
	second := []float32{0, 1, 0}
	_, err := e.EnrollFace(ctx, "alice", first)
	require.NoError(t, err)
	_, err = e.EnrollFace(ctx, "alice", second)
	require.NoError(t, err)

	v, err := e.VerifyFace(ctx, "alice", []float32{0, 0.99, 0.01})
	require.NoError(t, err)
	assert.True(t, v.Match)

	assert.Equal(t, 1, e.Stats().FaceUsers)
	assert.Equal(t, 2, e.Stats().FaceSamples)
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	e, err := Open(ctx, dir, WithFaceDimension(3), WithVoiceDimension(3))
	require.NoError(t, err)
	_, err = e.EnrollFace(ctx, "alice", []float32{1, 0, 0})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "face.snapshot"), []byte("garbage"), 0o644))

	reopened, err := Open(ctx, dir, WithFaceDimension(3), WithVoiceDimension(3))
	require.NoError(t, err)
	defer reopened.Close()
	assert.Zero(t, reopened.Stats().FaceSamples)
}

func TestErrStorageUnwraps(t *testing.T) {
	err := storageError(errors.New("disk full"))
	assert.ErrorIs(t, err, ErrStorage)
	assert.Contains(t, err.Error(), "disk full")
}
