package trail

import (
	"testing"

	"trailgo/pkg/vmath"
)

func times(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Time
	}
	return out
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRing_PushNewest(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 4; i++ {
		r.PushNewest(Sample{Time: float64(i)})
	}

	if r.Cursor() != 1 {
		t.Errorf("Cursor() = %d, want 1", r.Cursor())
	}
	if got := times(r.Ordered()); !equal(got, []float64{2, 3, 4}) {
		t.Errorf("Ordered() = %v, want [2 3 4]", got)
	}
	if got := times(r.Raw()); !equal(got, []float64{4, 2, 3}) {
		t.Errorf("Raw() = %v, want [4 2 3]", got)
	}
	if !r.At(0).Valid {
		t.Error("written slot should be valid")
	}
}

func TestRing_PushOldest(t *testing.T) {
	r := NewRing(3)
	for i := 4; i >= 1; i-- {
		r.PushOldest(Sample{Time: float64(i)})
	}

	if r.Cursor() != 2 {
		t.Errorf("Cursor() = %d, want 2", r.Cursor())
	}
	if got := times(r.Ordered()); !equal(got, []float64{1, 2, 3}) {
		t.Errorf("Ordered() = %v, want [1 2 3]", got)
	}
}

func TestRing_Reset(t *testing.T) {
	r := NewRing(2)
	r.PushNewest(Sample{Time: 1, Position: vmath.Vec3{X: 1}})
	r.Reset(5)

	if r.Len() != 5 || r.Cursor() != 0 {
		t.Fatalf("after Reset: Len=%d Cursor=%d", r.Len(), r.Cursor())
	}
	for i, s := range r.Raw() {
		if s.Valid {
			t.Errorf("slot %d still valid after Reset", i)
		}
	}
}

func TestRing_Empty(t *testing.T) {
	r := NewRing(0)
	r.PushNewest(Sample{Time: 1})
	r.PushOldest(Sample{Time: 1})
	if len(r.Ordered()) != 0 {
		t.Error("empty ring should stay empty")
	}
}
