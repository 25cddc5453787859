package patch

import (
	"github.com/gogpu/spvkit/spirv"
)

// Driver workaround constants: an exact 1.0 in every channel triggers the
// defect, 0.99 does not.
const (
	clampTrigger     float32 = 1.0
	clampReplacement float32 = 0.99
)

// ColorClamp replaces a fully saturated white fragment output with
// vec4(0.99) before it is stored. Any other value is stored unchanged.
//
// The module must have exactly one non-built-in fragment output, a vec4 of
// f32, and at least one OpStore to it. Every such store is patched.
type ColorClamp struct{}

// Patch implements Pass.
func (ColorClamp) Patch(m *spirv.Module) error {
	output, err := fragmentOutput(m)
	if err != nil {
		return err
	}

	var stores []spirv.Inst
	err = m.Walk(func(inst spirv.Inst) error {
		if inst.Opcode == spirv.OpStore && inst.WordCount >= 3 && m.Operands(inst)[0] == output.ID {
			stores = append(stores, inst)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(stores) == 0 {
		return spirv.NewErrorAt(spirv.ErrPrecondition, output.Variable.Offset,
			"no OpStore to fragment output %%%d", output.ID)
	}

	editor := spirv.NewEditor(m)
	r, err := NewResolver(editor)
	if err != nil {
		return err
	}
	if !r.IsFloatVector(output.Pointee, 4, 32) {
		return spirv.NewErrorAt(spirv.ErrPrecondition, output.Variable.Offset,
			"fragment output %%%d is not a vec4 of f32", output.ID)
	}

	decl, err := requireClampDeclarations(r)
	if err != nil {
		return err
	}

	e := newEmitter(editor)
	for _, store := range stores {
		value := m.Operands(store)[1]
		equal := e.op(spirv.OpFOrdEqual, decl.bvec4, value, decl.ones)
		all := e.op(spirv.OpAll, decl.boolean, equal)
		mask := e.op(spirv.OpCompositeConstruct, decl.bvec4, all, all, all, all)
		selected := e.op(spirv.OpSelect, decl.vec4, mask, decl.replacement, value)
		if err := e.flush(store.Offset); err != nil {
			return err
		}
		if err := editor.SetOperand(store, 2, selected); err != nil {
			return err
		}
	}

	_, err = editor.Commit()
	return err
}

type clampDeclarations struct {
	vec4        uint32
	ones        uint32
	replacement uint32
	boolean     uint32
	bvec4       uint32
}

// requireClampDeclarations resolves the declarations in dependency order.
func requireClampDeclarations(r *Resolver) (clampDeclarations, error) {
	var d clampDeclarations
	float, err := r.Require(FloatType(32))
	if err != nil {
		return d, err
	}
	if d.vec4, err = r.Require(VectorType(float, 4)); err != nil {
		return d, err
	}
	one, err := r.Require(ConstantF32(float, clampTrigger))
	if err != nil {
		return d, err
	}
	if d.ones, err = r.Require(ConstantComposite(d.vec4, one, one, one, one)); err != nil {
		return d, err
	}
	almost, err := r.Require(ConstantF32(float, clampReplacement))
	if err != nil {
		return d, err
	}
	if d.replacement, err = r.Require(ConstantComposite(d.vec4, almost, almost, almost, almost)); err != nil {
		return d, err
	}
	if d.boolean, err = r.Require(BoolType()); err != nil {
		return d, err
	}
	if d.bvec4, err = r.Require(VectorType(d.boolean, 4)); err != nil {
		return d, err
	}
	return d, nil
}

// fragmentOutput returns the single non-built-in output of the fragment entry points.
func fragmentOutput(m *spirv.Module) (Interface, error) {
	records, err := Interfaces(m)
	if err != nil {
		return Interface{}, err
	}
	var outputs []Interface
	for _, rec := range records {
		if rec.Model == spirv.ExecutionModelFragment && rec.Storage == spirv.StorageClassOutput && !rec.BuiltIn {
			outputs = append(outputs, rec)
		}
	}
	switch len(outputs) {
	case 0:
		return Interface{}, spirv.NewError(spirv.ErrPrecondition, "no fragment output variable")
	case 1:
		return outputs[0], nil
	default:
		return Interface{}, spirv.NewError(spirv.ErrPrecondition,
			"%d fragment output variables, want exactly one", len(outputs))
	}
}
