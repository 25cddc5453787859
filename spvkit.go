// Package spvkit loads compiled SPIR-V shaders: it applies the selected
// patch passes and extracts reflection metadata for resource binding.
//
// Example usage:
//
//	loader := spvkit.NewLoader(spvkit.LoadOptions{
//	    Logger: logger,
//	    Passes: []patch.Kind{patch.KindClipSpaceRotation},
//	    Config: patch.Config{AngleDegrees: 90},
//	    Reflect: true,
//	})
//	shader, err := loader.Load(data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A pass that fails is logged and skipped, leaving the module as it was
// before that pass. A malformed module or a failed reflection fails the
// whole load.
//
// For lower-level access use the spirv, patch and reflection packages.
package spvkit

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gogpu/spvkit/patch"
	"github.com/gogpu/spvkit/reflection"
	"github.com/gogpu/spvkit/shadercache"
	"github.com/gogpu/spvkit/spirv"
)

// LoadOptions configures a Loader.
type LoadOptions struct {
	// Logger receives pass failures and stripped locations. Nil disables
	// logging.
	Logger *zap.Logger

	// Passes are applied in order.
	Passes []patch.Kind

	// Config parameterizes the passes.
	Config patch.Config

	// Reflect extracts the shader resources after patching.
	Reflect bool
}

// DefaultLoadOptions returns options that reflect without patching.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{Reflect: true}
}

// Shader is a loaded shader module.
type Shader struct {
	// Stage is the execution model of the first entry point.
	Stage spirv.ExecutionModel

	// Module is the patched module.
	Module *spirv.Module

	// Applied lists the passes that succeeded, in order.
	Applied []patch.Kind

	// Skipped lists the passes that failed and were not applied.
	Skipped []patch.Kind

	// Resources is the reflection, or nil when not requested.
	Resources *reflection.Resources
}

// Bytecode returns the patched module bytes.
func (s *Shader) Bytecode() []byte {
	return s.Module.Bytes()
}

// CacheEntry packs the shader for shadercache.Encode.
func (s *Shader) CacheEntry() (*shadercache.Entry, error) {
	e := &shadercache.Entry{Stage: s.Stage, Bytecode: s.Bytecode()}
	if s.Resources != nil {
		stream, err := s.Resources.MarshalBinary()
		if err != nil {
			return nil, err
		}
		e.Reflection = stream
	}
	return e, nil
}

// Loader loads shaders with fixed options. It holds no per-shader state and
// may be used from several goroutines.
type Loader struct {
	opts   LoadOptions
	passes []patch.Pass
	err    error
	log    *zap.Logger
}

// NewLoader returns a loader for opts. An invalid pass configuration is
// reported by every Load.
func NewLoader(opts LoadOptions) *Loader {
	l := &Loader{opts: opts, log: opts.Logger}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	for _, kind := range opts.Passes {
		p, err := patch.New(kind, opts.Config)
		if err != nil {
			l.err = fmt.Errorf("configure %s: %w", kind, err)
			break
		}
		l.passes = append(l.passes, p)
	}
	return l
}

// Load parses data, applies the configured passes and reflects the result.
func (l *Loader) Load(data []byte) (*Shader, error) {
	if l.err != nil {
		return nil, l.err
	}
	m, err := spirv.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	entries, err := m.EntryPoints()
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if len(entries) == 0 {
		return nil, spirv.NewError(spirv.ErrPrecondition, "module has no entry point")
	}

	s := &Shader{Stage: entries[0].Model, Module: m}
	for i, p := range l.passes {
		kind := l.opts.Passes[i]
		if kind == patch.KindUnusedLocations {
			l.logUnused(m)
		}
		if err := p.Patch(m); err != nil {
			if !IsSkippable(err) {
				return nil, fmt.Errorf("%s: %w", kind, err)
			}
			l.log.Warn("shader patch skipped",
				zap.String("pass", kind.String()),
				zap.Error(err))
			s.Skipped = append(s.Skipped, kind)
			continue
		}
		s.Applied = append(s.Applied, kind)
	}

	if l.opts.Reflect {
		res, err := reflection.Extract(m)
		if err != nil {
			return nil, fmt.Errorf("reflect: %w", err)
		}
		s.Resources = res
	}

	l.log.Debug("shader loaded",
		zap.Stringer("stage", s.Stage),
		zap.Int("words", m.Len()),
		zap.Int("applied", len(s.Applied)),
		zap.Int("skipped", len(s.Skipped)))
	return s, nil
}

func (l *Loader) logUnused(m *spirv.Module) {
	unused, err := patch.Unused(m, l.opts.Config.Consumer)
	if err != nil {
		return
	}
	for _, rec := range unused {
		l.log.Warn("vertex output location is not consumed by the fragment stage",
			zap.Uint32("location", rec.Location),
			zap.Uint32("id", rec.ID))
	}
}

// IsSkippable reports whether err from a pass leaves the load usable: any
// pass failure other than a malformed module.
func IsSkippable(err error) bool {
	var e *spirv.Error
	return errors.As(err, &e) && e.Kind != spirv.ErrFormat
}
