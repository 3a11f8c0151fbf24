package trail

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailgo/pkg/ephemeris"
	"trailgo/pkg/existence"
	"trailgo/pkg/vmath"
)

type staticFeatures struct{ enabled bool }

func (f *staticFeatures) TrajectoriesEnabled() bool { return f.enabled }

type recordingUploader struct{ frames []*Frame }

func (u *recordingUploader) Upload(f *Frame) { u.frames = append(u.frames, f) }

type countingStats struct {
	lookups, failures, resets, skips, uploads int
}

func (c *countingStats) TrackLookup(_ string, ok bool) {
	c.lookups++
	if !ok {
		c.failures++
	}
}
func (c *countingStats) TrackReset(string)     { c.resets++ }
func (c *countingStats) TrackGuardSkip(string) { c.skips++ }
func (c *countingStats) TrackUpload(string)    { c.uploads++ }

// fakeEphemeris places the body at X=t and can refuse selected times.
// Lookups for any other target resolve the observer origin.
type fakeEphemeris struct {
	fail       map[float64]bool
	failOrigin bool
	y          float64
	calls      []float64
}

func (f *fakeEphemeris) Position(target, _ ephemeris.Anchor, t float64) (vmath.Vec3, error) {
	if target.Center != "Probe" {
		if f.failOrigin {
			return vmath.Vec3{}, ephemeris.ErrDataUnavailable
		}
		return vmath.Vec3{}, nil
	}
	f.calls = append(f.calls, t)
	if f.fail[t] {
		return vmath.Vec3{}, ephemeris.ErrDataUnavailable
	}
	return vmath.Vec3{X: t, Y: f.y}, nil
}

type fixture struct {
	sampler  *Sampler
	eph      *fakeEphemeris
	features *staticFeatures
	uploader *recordingUploader
	stats    *countingStats
}

func newFixture(t *testing.T, length float64, samples int, window existence.Window) *fixture {
	t.Helper()
	f := &fixture{
		eph:      &fakeEphemeris{fail: map[float64]bool{}},
		features: &staticFeatures{enabled: true},
		uploader: &recordingUploader{},
		stats:    &countingStats{},
	}
	s, err := NewSampler(Config{
		Name:    "probe",
		Target:  ephemeris.Anchor{Center: "Probe", Frame: "ECLIPJ2000"},
		Parent:  ephemeris.Anchor{Center: "Sun", Frame: "ECLIPJ2000"},
		Length:  length,
		Samples: samples,
		Color:   Color{R: 1, G: 0.5, B: 0},
		Window:  window,
	}, f.eph, f.features, WithUploader(f.uploader), WithStats(f.stats))
	require.NoError(t, err)
	f.sampler = s
	return f
}

func validTimes(s []Sample) []float64 {
	var out []float64
	for _, smp := range s {
		if smp.Valid {
			out = append(out, smp.Time)
		}
	}
	return out
}

func orderedTimes(s *Sampler) []float64 {
	return validTimes(s.ring.Ordered())
}

func assertSpacing(t *testing.T, times []float64, step float64) {
	t.Helper()
	for i := 1; i < len(times); i++ {
		assert.InDelta(t, step, times[i]-times[i-1], 1e-9, "gap between %v and %v", times[i-1], times[i])
	}
}

func TestNewSampler_Validation(t *testing.T) {
	f := &staticFeatures{enabled: true}
	_, err := NewSampler(Config{Length: 0, Samples: 10}, &fakeEphemeris{}, f)
	assert.True(t, errors.Is(err, ErrInvalidLength))

	_, err = NewSampler(Config{Length: 10, Samples: 0}, &fakeEphemeris{}, f)
	assert.True(t, errors.Is(err, ErrInvalidSampleCount))
}

func TestSampler_BufferSizeInvariant(t *testing.T) {
	tests := []struct {
		name    string
		length  float64
		samples int
		times   []float64
	}{
		{"Single", 10, 1, []float64{0, 1, 2, 50, 3}},
		{"Forward", 100, 10, []float64{0, 5, 10, 15}},
		{"Backward", 100, 7, []float64{500, 495, 490, 480}},
		{"Jumps", 60, 13, []float64{0, 1000, -1000, 1001, 1002}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, tt.length, tt.samples, existence.Unbounded())
			for _, ts := range tt.times {
				fx.sampler.Update(ts, ephemeris.Anchor{})
				assert.Equal(t, tt.samples, fx.sampler.ring.Len())
				assert.Len(t, fx.sampler.Snapshot().Samples, tt.samples)
			}
		})
	}
}

func TestSampler_FirstUpdateFillsEverySlot(t *testing.T) {
	fx := newFixture(t, 100, 10, existence.Unbounded())
	fx.sampler.Update(1000, ephemeris.Anchor{})

	times := orderedTimes(fx.sampler)
	require.Len(t, times, 10)
	assert.InDelta(t, 910, times[0], 1e-9)
	assert.InDelta(t, 1000, times[9], 1e-9)
	assert.Equal(t, 1, fx.stats.resets)
}

func TestSampler_MonotonicSpacingForward(t *testing.T) {
	fx := newFixture(t, 100, 10, existence.Unbounded())

	for ts := 0.0; ts <= 300; ts += 3 {
		fx.sampler.Update(ts, ephemeris.Anchor{})
		times := orderedTimes(fx.sampler)
		require.Len(t, times, 10)
		assertSpacing(t, times, 10)
		assert.GreaterOrEqual(t, times[9], ts)
		assert.Less(t, times[9]-ts, 10.0)
	}
	assert.Equal(t, 1, fx.stats.resets)
	assert.Zero(t, fx.stats.skips)
}

func TestSampler_MonotonicSpacingBackward(t *testing.T) {
	fx := newFixture(t, 100, 10, existence.Unbounded())
	fx.sampler.Update(1000, ephemeris.Anchor{})
	require.NoError(t, fx.sampler.SetLength(100))

	for ts := 995.0; ts >= 700; ts -= 3 {
		fx.sampler.Update(ts, ephemeris.Anchor{})
		times := orderedTimes(fx.sampler)
		require.Len(t, times, 10)
		assertSpacing(t, times, 10)
		assert.LessOrEqual(t, times[9], ts)
		assert.Less(t, ts-times[9], 10.0)
	}
}

func TestSampler_ExistenceClamping(t *testing.T) {
	window := existence.Window{Start: 0, End: 1000}
	fx := newFixture(t, 100, 10, window)

	check := func() {
		for _, smp := range fx.sampler.Snapshot().Samples {
			if !smp.Valid {
				continue
			}
			assert.GreaterOrEqual(t, smp.Time, window.Start)
			assert.LessOrEqual(t, smp.Time, window.End)
		}
		for _, c := range fx.eph.calls {
			assert.GreaterOrEqual(t, c, window.Start)
			assert.LessOrEqual(t, c, window.End)
		}
	}

	for ts := 5.0; ts < 1100; ts += 5 {
		fx.sampler.Update(ts, ephemeris.Anchor{})
		check()
	}
	for ts := 1095.0; ts > 0; ts -= 5 {
		fx.sampler.Update(ts, ephemeris.Anchor{})
		check()
	}
}

func TestSampler_GuardIdempotence(t *testing.T) {
	fx := newFixture(t, 100, 10, existence.Unbounded())
	fx.sampler.Update(50, ephemeris.Anchor{})
	before := fx.sampler.Snapshot().Samples
	lookups := fx.stats.lookups

	fx.sampler.Update(50+11, ephemeris.Anchor{})

	if diff := cmp.Diff(before, fx.sampler.Snapshot().Samples); diff != "" {
		t.Errorf("buffer changed across a guarded frame (-before +after):\n%s", diff)
	}
	assert.Equal(t, lookups, fx.stats.lookups)
	assert.Equal(t, 1, fx.stats.skips)
}

func TestSampler_ResetCompleteness(t *testing.T) {
	tests := []struct {
		name    string
		change  func(*Sampler) error
		samples int
	}{
		{"SampleCount", func(s *Sampler) error { return s.SetSampleCount(5) }, 5},
		{"Length", func(s *Sampler) error { return s.SetLength(200) }, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t, 100, 10, existence.Unbounded())
			fx.eph.y = 1
			for ts := 0.0; ts <= 30; ts += 5 {
				fx.sampler.Update(ts, ephemeris.Anchor{})
			}

			require.NoError(t, tt.change(fx.sampler))
			fx.eph.y = 2
			fx.sampler.Update(31, ephemeris.Anchor{})

			snap := fx.sampler.Snapshot()
			require.Len(t, snap.Samples, tt.samples)
			for i, smp := range snap.Samples {
				assert.True(t, smp.Valid, "slot %d not refilled", i)
				assert.Equal(t, 2.0, smp.Position.Y, "slot %d holds a sample from the old configuration", i)
			}
			step := fx.sampler.Length() / float64(tt.samples)
			assertSpacing(t, orderedTimes(fx.sampler), step)
		})
	}
}

func TestSampler_SetterValidation(t *testing.T) {
	fx := newFixture(t, 100, 10, existence.Unbounded())
	assert.True(t, errors.Is(fx.sampler.SetLength(-1), ErrInvalidLength))
	assert.True(t, errors.Is(fx.sampler.SetLength(math.NaN()), ErrInvalidLength))
	assert.True(t, errors.Is(fx.sampler.SetSampleCount(0), ErrInvalidSampleCount))
	assert.Equal(t, 100.0, fx.sampler.Length())
	assert.Equal(t, 10, fx.sampler.SampleCount())
}

func TestSampler_DirectionSymmetryScenario(t *testing.T) {
	fx := newFixture(t, 100, 10, existence.Window{Start: 0, End: 1000})
	s := fx.sampler

	s.Update(50, ephemeris.Anchor{})
	times := orderedTimes(s)
	require.Len(t, times, 10)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 10, 20, 30, 40, 50}, times)
	afterFill := s.Snapshot().Samples

	// Far jump: guard fails, buffer untouched.
	s.Update(500, ephemeris.Anchor{})
	assert.Empty(t, cmp.Diff(afterFill, s.Snapshot().Samples))

	// The frame at 500 became the reference, so 55 is still a jump.
	s.Update(55, ephemeris.Anchor{})
	assert.Empty(t, cmp.Diff(afterFill, s.Snapshot().Samples))

	// Next frame at 55 passes and appends one forward sample at 60.
	lookups := fx.stats.lookups
	s.Update(55, ephemeris.Anchor{})
	assert.Equal(t, 1, fx.stats.lookups-lookups)
	assert.Equal(t, []float64{0, 0, 0, 0, 10, 20, 30, 40, 50, 60}, orderedTimes(s))
	assert.Equal(t, 2, s.Snapshot().Cursor)
}

func TestSampler_FailureTolerance(t *testing.T) {
	fx := newFixture(t, 100, 100, existence.Unbounded())
	s := fx.sampler
	s.Update(0, ephemeris.Anchor{})
	before := s.Snapshot()

	fx.eph.fail = map[float64]bool{4: true, 5: true, 6: true}
	assert.NotPanics(t, func() { s.Update(10, ephemeris.Anchor{}) })

	after := s.Snapshot()
	assert.Equal(t, 3, fx.stats.failures)
	// Seven successful writes move the cursor by seven; the three slots that
	// would have taken the failed samples keep their old contents.
	assert.Equal(t, (before.Cursor+7)%100, after.Cursor)
	for i := 0; i < 3; i++ {
		slot := (after.Cursor + i) % 100
		assert.Equal(t, before.Samples[slot], after.Samples[slot], "slot %d", slot)
	}
	written := validTimes(s.ring.Ordered())
	assert.Equal(t, []float64{1, 2, 3, 7, 8, 9, 10}, written[len(written)-7:])
}

func TestSampler_FailureToleranceBackward(t *testing.T) {
	fx := newFixture(t, 100, 100, existence.Unbounded())
	s := fx.sampler
	s.Update(1000, ephemeris.Anchor{})
	before := s.Snapshot()
	lookups := fx.stats.lookups

	// Stepping back to 990 prepends the nine samples 899 down to 891.
	fx.eph.fail = map[float64]bool{893: true, 894: true, 895: true}
	assert.NotPanics(t, func() { s.Update(990, ephemeris.Anchor{}) })

	after := s.Snapshot()
	assert.Equal(t, 9, fx.stats.lookups-lookups)
	assert.Equal(t, 3, fx.stats.failures)
	// Six successful writes move the cursor back by six; the three slots just
	// before the new cursor would have held the failed samples and keep their
	// old contents.
	assert.Equal(t, (before.Cursor-6+100)%100, after.Cursor)
	for i := 1; i <= 3; i++ {
		slot := (after.Cursor - i + 100) % 100
		assert.Equal(t, before.Samples[slot], after.Samples[slot], "slot %d", slot)
	}
	written := validTimes(s.ring.Ordered())
	require.Len(t, written, 100)
	assert.Equal(t, []float64{891, 892, 896, 897, 898, 899, 901}, written[:7])
	assert.Equal(t, []float64{992, 993, 994}, written[97:])
}

func TestSampler_OriginFailureSkipsTip(t *testing.T) {
	fx := newFixture(t, 100, 10, existence.Unbounded())
	observer := ephemeris.Anchor{Center: "Earth", Frame: "ECLIPJ2000"}
	fx.sampler.Update(100, observer)
	require.Len(t, fx.uploader.frames, 1)
	assert.True(t, fx.sampler.Snapshot().HasTip)

	fx.eph.failOrigin = true
	fx.sampler.Update(101, observer)
	assert.Len(t, fx.uploader.frames, 1)
	snap := fx.sampler.Snapshot()
	assert.False(t, snap.HasTip)
	assert.Equal(t, 100.0, snap.Tip.X)

	fx.eph.failOrigin = false
	fx.sampler.Update(102, observer)
	assert.Len(t, fx.uploader.frames, 2)
	snap = fx.sampler.Snapshot()
	assert.True(t, snap.HasTip)
	assert.Equal(t, 102.0, snap.Tip.X)
}

func TestSampler_FeatureDisabled(t *testing.T) {
	fx := newFixture(t, 100, 10, existence.Unbounded())
	fx.features.enabled = false

	fx.sampler.Update(50, ephemeris.Anchor{})
	assert.False(t, fx.sampler.IsTrailActive())
	assert.Empty(t, fx.eph.calls)
	assert.Empty(t, fx.uploader.frames)

	fx.features.enabled = true
	fx.sampler.Update(50, ephemeris.Anchor{})
	assert.True(t, fx.sampler.IsTrailActive())
	assert.Len(t, fx.uploader.frames, 1)
}

func TestSampler_ActiveAfterExistenceEnd(t *testing.T) {
	fx := newFixture(t, 100, 10, existence.Window{Start: 0, End: 1000})

	tests := []struct {
		t      float64
		active bool
	}{
		{-10, false},
		{0, false},
		{500, true},
		{1050, true},
		{1100, false},
	}
	for _, tt := range tests {
		fx.sampler.Update(tt.t, ephemeris.Anchor{})
		assert.Equal(t, tt.active, fx.sampler.IsTrailActive(), "t=%v", tt.t)
	}
}

func TestSampler_Publish(t *testing.T) {
	fx := newFixture(t, 100, 10, existence.Unbounded())
	fx.sampler.Update(100, ephemeris.Anchor{Center: "Earth", Frame: "ECLIPJ2000"})

	require.Len(t, fx.uploader.frames, 1)
	f := fx.uploader.frames[0]
	assert.Equal(t, "probe", f.Name)
	assert.Equal(t, 100.0, f.Tip.X)
	assert.Equal(t, fx.sampler.Snapshot().Cursor, f.Cursor)
	assert.Equal(t, float32(1), f.Gradient.Start.A)
	assert.Equal(t, float32(0), f.Gradient.End.A)
	assert.InDelta(t, 100, f.MaxRadius, 1e-9)
	assert.Equal(t, 1, fx.stats.uploads)

	// Invisible: sampling continues, nothing is published.
	fx.sampler.SetVisible(false)
	fx.sampler.Update(105, ephemeris.Anchor{})
	assert.Len(t, fx.uploader.frames, 1)
	assert.InDelta(t, 110, orderedTimes(fx.sampler)[9], 1e-9)

	// A missing tip skips the frame.
	fx.sampler.SetVisible(true)
	fx.eph.fail = map[float64]bool{108: true}
	fx.sampler.Update(108, ephemeris.Anchor{})
	assert.Len(t, fx.uploader.frames, 1)
	assert.False(t, fx.sampler.Snapshot().HasTip)
}

func TestSampler_PausedClockDoesNoWork(t *testing.T) {
	fx := newFixture(t, 100, 10, existence.Unbounded())
	fx.sampler.Update(100, ephemeris.Anchor{})
	calls := len(fx.eph.calls)

	fx.sampler.Update(100, ephemeris.Anchor{})
	fx.sampler.Update(100, ephemeris.Anchor{})
	// Only the two tip lookups.
	assert.Equal(t, calls+2, len(fx.eph.calls))
}
