package trail

import "trailgo/pkg/vmath"

// Sample is one timestamped position of a body relative to its trail parent.
type Sample struct {
	Position vmath.Vec3 `json:"position"`
	Time     float64    `json:"time"`
	Valid    bool       `json:"valid"` // false until the slot is first written
}

// Ring is a fixed-capacity circular buffer of samples. The cursor marks the
// oldest slot: PushNewest overwrites it and moves forward, PushOldest moves
// backward and writes there.
type Ring struct {
	slots  []Sample
	cursor int
}

// NewRing creates a ring with n empty slots.
func NewRing(n int) *Ring {
	r := &Ring{}
	r.Reset(n)
	return r
}

// Reset discards all samples and resizes the ring to n slots.
func (r *Ring) Reset(n int) {
	if n < 0 {
		n = 0
	}
	r.slots = make([]Sample, n)
	r.cursor = 0
}

// Len returns the capacity of the ring.
func (r *Ring) Len() int {
	return len(r.slots)
}

// Cursor returns the index of the oldest slot.
func (r *Ring) Cursor() int {
	return r.cursor
}

// At returns the sample in slot i.
func (r *Ring) At(i int) Sample {
	return r.slots[i]
}

// PushNewest writes s over the oldest slot and advances the cursor.
func (r *Ring) PushNewest(s Sample) {
	if len(r.slots) == 0 {
		return
	}
	s.Valid = true
	r.slots[r.cursor] = s
	r.cursor = (r.cursor + 1) % len(r.slots)
}

// PushOldest steps the cursor back and writes s there, evicting the newest sample.
func (r *Ring) PushOldest(s Sample) {
	n := len(r.slots)
	if n == 0 {
		return
	}
	r.cursor = (r.cursor - 1 + n) % n
	s.Valid = true
	r.slots[r.cursor] = s
}

// Raw returns a copy of the slots in storage order.
func (r *Ring) Raw() []Sample {
	out := make([]Sample, len(r.slots))
	copy(out, r.slots)
	return out
}

// Ordered returns a copy of the slots from oldest to newest.
func (r *Ring) Ordered() []Sample {
	out := make([]Sample, 0, len(r.slots))
	out = append(out, r.slots[r.cursor:]...)
	out = append(out, r.slots[:r.cursor]...)
	return out
}
