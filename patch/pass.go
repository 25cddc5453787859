// Package patch rewrites SPIR-V modules in place.
//
// Every pass has the same contract: Patch either succeeds and leaves a valid,
// self-consistent module with an updated ID bound, or returns an error and
// leaves the module byte-for-byte unchanged. Passes queue their edits on a
// spirv.Editor and commit only after every precondition has been checked.
//
// Passes keep no state between calls and share nothing, so different
// modules may be patched concurrently.
package patch

import (
	"fmt"
	"strings"

	"github.com/gogpu/spvkit/spirv"
)

// Pass is a single self-contained module transformation.
type Pass interface {
	Patch(m *spirv.Module) error
}

// Kind identifies one of the available passes.
type Kind uint8

const (
	// KindColorClamp nudges fully saturated white fragment output to 0.99.
	KindColorClamp Kind = iota

	// KindUnusedLocations strips vertex outputs that the fragment stage never reads.
	KindUnusedLocations

	// KindClipSpaceRotation rotates the clip-space position by a fixed angle.
	KindClipSpaceRotation

	// KindInvertOrdinate negates the clip-space Y coordinate.
	KindInvertOrdinate
)

var kindNames = [...]string{
	KindColorClamp:        "color-clamp",
	KindUnusedLocations:   "unused-locations",
	KindClipSpaceRotation: "clip-rotation",
	KindInvertOrdinate:    "invert-ordinate",
}

// String returns the pass name used on the command line.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Kinds returns every pass kind in application order.
func Kinds() []Kind {
	return []Kind{KindColorClamp, KindUnusedLocations, KindClipSpaceRotation, KindInvertOrdinate}
}

// ParseKind parses a pass name as printed by Kind.String.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(name, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown pass %q (want one of %s)", name, strings.Join(kindNames[:], ", "))
}

// Config holds the parameters of the passes that need them.
type Config struct {
	// AngleDegrees is the clip-space rotation angle.
	AngleDegrees float32

	// Consumer is the fragment module read by the unused-location stripper.
	Consumer *spirv.Module
}

// New returns the pass for kind configured from cfg.
func New(kind Kind, cfg Config) (Pass, error) {
	switch kind {
	case KindColorClamp:
		return ColorClamp{}, nil
	case KindUnusedLocations:
		if cfg.Consumer == nil {
			return nil, fmt.Errorf("%s needs a consumer module", kind)
		}
		return UnusedLocationStripper{Consumer: cfg.Consumer}, nil
	case KindClipSpaceRotation:
		return ClipSpaceRotator{AngleDegrees: cfg.AngleDegrees}, nil
	case KindInvertOrdinate:
		return OrdinateInverter{}, nil
	default:
		return nil, fmt.Errorf("unknown pass kind %d", uint8(kind))
	}
}
