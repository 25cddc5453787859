package patch

import (
	"slices"

	"github.com/gogpu/spvkit/spirv"
)

// interfaceDecorations are dropped together with Location when an output
// stops being part of the stage interface.
var interfaceDecorations = map[spirv.Decoration]bool{
	spirv.DecorationLocation:      true,
	spirv.DecorationComponent:     true,
	spirv.DecorationFlat:          true,
	spirv.DecorationNoPerspective: true,
	spirv.DecorationCentroid:      true,
	spirv.DecorationSample:        true,
}

// UnusedLocationStripper removes vertex outputs whose location no fragment
// input of Consumer reads.
//
// A stripped output leaves the entry point interface and loses its Location
// and interpolation decorations. The variable itself is kept, moved to the
// Private storage class, so the stores to it in the function body stay valid.
type UnusedLocationStripper struct {
	Consumer *spirv.Module
}

// Unused returns the vertex outputs of vertex that no fragment input of
// fragment declares the same location for.
func Unused(vertex, fragment *spirv.Module) ([]Interface, error) {
	produced, err := Interfaces(vertex)
	if err != nil {
		return nil, err
	}
	consumed, err := Interfaces(fragment)
	if err != nil {
		return nil, err
	}

	if _, err := vertexEntry(vertex); err != nil {
		return nil, err
	}
	entries, err := fragment.EntryPoints()
	if err != nil {
		return nil, err
	}
	if !slices.ContainsFunc(entries, func(e spirv.EntryPoint) bool {
		return e.Model == spirv.ExecutionModelFragment
	}) {
		return nil, spirv.NewError(spirv.ErrPrecondition, "consumer has no fragment entry point")
	}

	inputs := make(map[uint32]bool)
	for _, rec := range consumed {
		if rec.Model == spirv.ExecutionModelFragment && rec.Storage == spirv.StorageClassInput && rec.HasLocation {
			inputs[rec.Location] = true
		}
	}

	var unused []Interface
	for _, rec := range produced {
		if rec.Model == spirv.ExecutionModelVertex && rec.Storage == spirv.StorageClassOutput &&
			rec.HasLocation && !rec.BuiltIn && !inputs[rec.Location] {
			unused = append(unused, rec)
		}
	}
	return unused, nil
}

// Patch implements Pass.
func (p UnusedLocationStripper) Patch(m *spirv.Module) error {
	if p.Consumer == nil {
		return spirv.NewError(spirv.ErrPrecondition, "no consumer module")
	}
	unused, err := Unused(m, p.Consumer)
	if err != nil {
		return err
	}
	if len(unused) == 0 {
		return nil
	}

	stripped := make(map[uint32]Interface, len(unused))
	for _, rec := range unused {
		stripped[rec.ID] = rec
	}

	editor := spirv.NewEditor(m)
	r, err := NewResolver(editor)
	if err != nil {
		return err
	}
	// From 1.4 on, every global an entry point uses must stay in its interface.
	keepInInterface := m.Version().Major > 1 || m.Version().Minor >= 4

	// Moved variables are re-declared at the end of the global section,
	// after the Private pointer types they now use.
	for _, rec := range unused {
		ptr, err := r.Require(PointerType(spirv.StorageClassPrivate, rec.Pointee))
		if err != nil {
			return err
		}
		words := slices.Clone(m.Operands(rec.Variable))
		words[0] = ptr
		words[2] = uint32(spirv.StorageClassPrivate)
		if err := editor.Remove(rec.Variable); err != nil {
			return err
		}
		if err := editor.Insert(r.DeclarationPoint(), spirv.NewInstruction(spirv.OpVariable, words...).Encode()...); err != nil {
			return err
		}
	}

	if !keepInInterface {
		entries, err := m.EntryPoints()
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := stripEntryPoint(m, editor, entry, stripped); err != nil {
				return err
			}
		}
	}

	derived := make(map[uint32]bool)
	err = m.Walk(func(inst spirv.Inst) error {
		ops := m.Operands(inst)
		switch inst.Opcode {
		case spirv.OpDecorate:
			if len(ops) < 2 {
				return nil
			}
			if _, ok := stripped[ops[0]]; ok && interfaceDecorations[spirv.Decoration(ops[1])] {
				return editor.Remove(inst)
			}
		case spirv.OpAccessChain, spirv.OpInBoundsAccessChain:
			if len(ops) < 3 {
				return spirv.NewErrorAt(spirv.ErrFormat, inst.Offset, "short %s", inst.Opcode)
			}
			if _, ok := stripped[ops[2]]; !ok && !derived[ops[2]] {
				return nil
			}
			derived[ops[1]] = true
			_, pointee, ok := r.Pointee(ops[0])
			if !ok {
				return spirv.NewErrorAt(spirv.ErrPrecondition, inst.Offset,
					"access chain result type %%%d is not a known pointer", ops[0])
			}
			ptr, err := r.Require(PointerType(spirv.StorageClassPrivate, pointee))
			if err != nil {
				return err
			}
			return editor.SetOperand(inst, 1, ptr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	_, err = editor.Commit()
	return err
}

// stripEntryPoint rewrites an OpEntryPoint without the stripped IDs.
func stripEntryPoint(m *spirv.Module, editor *spirv.Editor, entry spirv.EntryPoint, stripped map[uint32]Interface) error {
	kept := slices.DeleteFunc(slices.Clone(entry.Interface), func(id uint32) bool {
		_, ok := stripped[id]
		return ok
	})
	if len(kept) == len(entry.Interface) {
		return nil
	}
	words := slices.Clone(m.Operands(entry.Inst)[:entry.InterfaceOperand-1])
	words = append(words, kept...)
	return editor.Replace(entry.Inst, spirv.NewInstruction(spirv.OpEntryPoint, words...).Encode()...)
}
