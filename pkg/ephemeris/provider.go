// Package ephemeris provides body positions over time.
package ephemeris

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"trailgo/pkg/vmath"
)

var (
	// ErrDataUnavailable is returned when no ephemeris covers the requested time.
	ErrDataUnavailable = errors.New("ephemeris data unavailable")
	// ErrUnknownBody is returned for bodies no source knows about.
	ErrUnknownBody = errors.New("unknown body")
	// ErrUnknownFrame is returned for reference frames that are not configured.
	ErrUnknownFrame = errors.New("unknown reference frame")
)

// maxChain bounds parent-chain walks so a cyclic configuration cannot hang a frame.
const maxChain = 16

// Anchor names a body center and the frame its coordinates are expressed in.
type Anchor struct {
	Center string `json:"center" yaml:"center"`
	Frame  string `json:"frame" yaml:"frame"`
}

// Provider returns the position of target relative to observer at time t
// (seconds past J2000).
type Provider interface {
	Position(target, observer Anchor, t float64) (vmath.Vec3, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(target, observer Anchor, t float64) (vmath.Vec3, error)

// Position implements Provider.
func (f ProviderFunc) Position(target, observer Anchor, t float64) (vmath.Vec3, error) {
	return f(target, observer, t)
}

// Source knows a set of bodies relative to their parents.
type Source interface {
	Has(body string) bool
	// Relative returns the body's parent and its position relative to it.
	Relative(body string, t float64) (parent string, pos vmath.Vec3, err error)
}

// Resolver implements Provider on top of one or more sources by summing each
// body's chain of parent offsets up to the root.
type Resolver struct {
	root    string
	frames  map[string]bool
	sources []Source
}

// NewResolver creates a Resolver. An empty frames list accepts any frame.
// Sources are consulted in order; the first one that has a body serves it.
func NewResolver(root string, frames []string, sources ...Source) *Resolver {
	fm := make(map[string]bool, len(frames))
	for _, f := range frames {
		fm[f] = true
	}
	return &Resolver{root: root, frames: fm, sources: sources}
}

// Position implements Provider.
func (r *Resolver) Position(target, observer Anchor, t float64) (vmath.Vec3, error) {
	for _, f := range []string{target.Frame, observer.Frame} {
		if f != "" && len(r.frames) > 0 && !r.frames[f] {
			return vmath.Vec3{}, fmt.Errorf("%w: %s", ErrUnknownFrame, f)
		}
	}

	tp, err := r.absolute(target.Center, t)
	if err != nil {
		return vmath.Vec3{}, err
	}
	op, err := r.absolute(observer.Center, t)
	if err != nil {
		return vmath.Vec3{}, err
	}
	return r3.Sub(tp, op), nil
}

func (r *Resolver) absolute(body string, t float64) (vmath.Vec3, error) {
	var pos vmath.Vec3
	for depth := 0; depth < maxChain; depth++ {
		if body == r.root || body == "" {
			return pos, nil
		}
		src := r.sourceFor(body)
		if src == nil {
			return vmath.Vec3{}, fmt.Errorf("%w: %s", ErrUnknownBody, body)
		}
		parent, rel, err := src.Relative(body, t)
		if err != nil {
			return vmath.Vec3{}, err
		}
		pos = r3.Add(pos, rel)
		body = parent
	}
	return vmath.Vec3{}, fmt.Errorf("%w: parent chain of %s does not reach %s", ErrUnknownBody, body, r.root)
}

func (r *Resolver) sourceFor(body string) Source {
	for _, s := range r.sources {
		if s.Has(body) {
			return s
		}
	}
	return nil
}
