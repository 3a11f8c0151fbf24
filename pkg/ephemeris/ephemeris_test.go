package ephemeris

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailgo/pkg/existence"
	"trailgo/pkg/vmath"
)

const day = 86400.0

func circular(parent string, radius, period float64) Orbit {
	return Orbit{
		Parent:        parent,
		SemiMajorAxis: radius,
		Period:        period,
		Coverage:      existence.Unbounded(),
	}
}

func TestKepler_CircularOrbit(t *testing.T) {
	k := NewKepler(map[string]Orbit{"Earth": circular("Sun", 1000, 100*day)})

	tests := []struct {
		name string
		t    float64
		want vmath.Vec3
	}{
		{"Epoch", 0, vmath.Vec3{X: 1000}},
		{"QuarterPeriod", 25 * day, vmath.Vec3{Y: 1000}},
		{"HalfPeriod", 50 * day, vmath.Vec3{X: -1000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent, pos, err := k.Relative("Earth", tt.t)
			require.NoError(t, err)
			assert.Equal(t, "Sun", parent)
			assert.InDelta(t, tt.want.X, pos.X, 1e-6)
			assert.InDelta(t, tt.want.Y, pos.Y, 1e-6)
			assert.InDelta(t, tt.want.Z, pos.Z, 1e-6)
		})
	}
}

func TestKepler_EccentricRadiusBounds(t *testing.T) {
	o := Orbit{Parent: "Sun", SemiMajorAxis: 1000, Eccentricity: 0.5, Period: day, Coverage: existence.Unbounded()}
	k := NewKepler(map[string]Orbit{"Comet": o})

	for i := 0; i < 100; i++ {
		_, pos, err := k.Relative("Comet", float64(i)*day/100)
		require.NoError(t, err)
		r := vmath.Length(pos)
		assert.GreaterOrEqual(t, r, 500-1e-6)
		assert.LessOrEqual(t, r, 1500+1e-6)
	}
}

func TestKepler_Coverage(t *testing.T) {
	o := circular("Sun", 1, day)
	o.Coverage = existence.Window{Start: 0, End: 10 * day}
	k := NewKepler(map[string]Orbit{"Probe": o})

	_, _, err := k.Relative("Probe", 11*day)
	assert.True(t, errors.Is(err, ErrDataUnavailable))

	_, _, err = k.Relative("Ghost", 0)
	assert.True(t, errors.Is(err, ErrUnknownBody))
}

func TestTable_Interpolation(t *testing.T) {
	tb := NewTable(map[string]Track{
		"Probe": {Parent: "Earth", Rows: []Row{
			{Time: 20, Position: vmath.Vec3{X: 20}},
			{Time: 0, Position: vmath.Vec3{X: 0}},
			{Time: 10, Position: vmath.Vec3{X: 10, Y: 10}},
		}},
	})

	start, end, ok := tb.Coverage("Probe")
	require.True(t, ok)
	assert.Equal(t, 0.0, start)
	assert.Equal(t, 20.0, end)

	tests := []struct {
		name    string
		t       float64
		want    vmath.Vec3
		wantErr error
	}{
		{"ExactRow", 10, vmath.Vec3{X: 10, Y: 10}, nil},
		{"FirstRow", 0, vmath.Vec3{}, nil},
		{"Between", 15, vmath.Vec3{X: 15, Y: 5}, nil},
		{"BeforeCoverage", -1, vmath.Vec3{}, ErrDataUnavailable},
		{"AfterCoverage", 21, vmath.Vec3{}, ErrDataUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent, pos, err := tb.Relative("Probe", tt.t)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Earth", parent)
			assert.Equal(t, tt.want, pos)
		})
	}
}

func TestResolver_Chain(t *testing.T) {
	kepler := NewKepler(map[string]Orbit{
		"Earth": circular("Sun", 1000, 100*day),
		"Moon":  circular("Earth", 10, 10*day),
	})
	r := NewResolver("Sun", []string{"ECLIPJ2000"}, kepler)

	pos, err := r.Position(Anchor{"Moon", "ECLIPJ2000"}, Anchor{"Sun", "ECLIPJ2000"}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1010, pos.X, 1e-9)

	pos, err = r.Position(Anchor{"Moon", "ECLIPJ2000"}, Anchor{"Earth", "ECLIPJ2000"}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 10, pos.X, 1e-9)

	_, err = r.Position(Anchor{"Moon", "J2000"}, Anchor{"Sun", "ECLIPJ2000"}, 0)
	assert.True(t, errors.Is(err, ErrUnknownFrame))

	_, err = r.Position(Anchor{"Pluto", "ECLIPJ2000"}, Anchor{"Sun", "ECLIPJ2000"}, 0)
	assert.True(t, errors.Is(err, ErrUnknownBody))
}

func TestResolver_SourceOrder(t *testing.T) {
	table := NewTable(map[string]Track{
		"Earth": {Parent: "Sun", Rows: []Row{{Time: 0, Position: vmath.Vec3{X: 1}}, {Time: 10, Position: vmath.Vec3{X: 2}}}},
	})
	kepler := NewKepler(map[string]Orbit{"Earth": circular("Sun", 1000, day)})
	r := NewResolver("Sun", nil, table, kepler)

	pos, err := r.Position(Anchor{Center: "Earth"}, Anchor{Center: "Sun"}, 5)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, pos.X, 1e-12)

	// Table wins even when it cannot cover the time.
	_, err = r.Position(Anchor{Center: "Earth"}, Anchor{Center: "Sun"}, 50)
	assert.True(t, errors.Is(err, ErrDataUnavailable))
}

func TestResolver_CycleTerminates(t *testing.T) {
	k := NewKepler(map[string]Orbit{
		"A": circular("B", 1, day),
		"B": circular("A", 1, day),
	})
	r := NewResolver("Sun", nil, k)

	_, err := r.Position(Anchor{Center: "A"}, Anchor{Center: "Sun"}, 0)
	assert.True(t, errors.Is(err, ErrUnknownBody))
}
