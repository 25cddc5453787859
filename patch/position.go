package patch

import (
	"slices"

	"github.com/gogpu/spvkit/spirv"
)

// position locates the clip-space position written by a vertex entry point.
type position struct {
	// variable is the Output variable holding the position.
	variable uint32

	// member is the gl_PerVertex member index, or -1 for a plain variable.
	member int

	// vector is the vec4 type of the position.
	vector uint32
}

// findPosition finds the built-in Position output of entry, either as a
// variable decorated BuiltIn Position or as a block member carrying that
// decoration.
func findPosition(m *spirv.Module, r *Resolver, entry spirv.EntryPoint) (position, error) {
	decorated := make(map[uint32]bool)
	members := make(map[uint32]int)
	var outputs []spirv.Inst

	err := m.Walk(func(inst spirv.Inst) error {
		ops := m.Operands(inst)
		switch inst.Opcode {
		case spirv.OpDecorate:
			if len(ops) >= 3 && spirv.Decoration(ops[1]) == spirv.DecorationBuiltIn &&
				spirv.BuiltIn(ops[2]) == spirv.BuiltInPosition {
				decorated[ops[0]] = true
			}
		case spirv.OpMemberDecorate:
			if len(ops) >= 4 && spirv.Decoration(ops[2]) == spirv.DecorationBuiltIn &&
				spirv.BuiltIn(ops[3]) == spirv.BuiltInPosition {
				members[ops[0]] = int(ops[1])
			}
		case spirv.OpVariable:
			if len(ops) >= 3 && spirv.StorageClass(ops[2]) == spirv.StorageClassOutput &&
				slices.Contains(entry.Interface, ops[1]) {
				outputs = append(outputs, inst)
			}
		}
		return nil
	})
	if err != nil {
		return position{}, err
	}

	for _, inst := range outputs {
		ops := m.Operands(inst)
		_, pointee, ok := r.Pointee(ops[0])
		if !ok {
			continue
		}
		if decorated[ops[1]] {
			if !r.IsFloatVector(pointee, 4, 32) {
				return position{}, spirv.NewErrorAt(spirv.ErrPrecondition, inst.Offset,
					"position %%%d is not a vec4 of f32", ops[1])
			}
			return position{variable: ops[1], member: -1, vector: pointee}, nil
		}
		member, ok := members[pointee]
		if !ok {
			continue
		}
		block, _ := r.Type(pointee)
		if member >= len(block.Operands) || !r.IsFloatVector(block.Operands[member], 4, 32) {
			return position{}, spirv.NewErrorAt(spirv.ErrPrecondition, inst.Offset,
				"position member %d of %%%d is not a vec4 of f32", member, pointee)
		}
		return position{variable: ops[1], member: member, vector: block.Operands[member]}, nil
	}
	return position{}, spirv.NewError(spirv.ErrPrecondition, "no BuiltIn Position output in entry point %q", entry.Name)
}

// positionAccess holds the declarations needed to address position components.
type positionAccess struct {
	position
	float      uint32
	floatPtr   uint32
	vectorPtr  uint32
	memberID   uint32
	components [4]uint32
}

// requirePositionAccess resolves the float type, the Output float pointer,
// the index constants for the components in use and, for a block, the
// member index constant.
func requirePositionAccess(r *Resolver, pos position, components ...int) (positionAccess, error) {
	access := positionAccess{position: pos}
	var err error
	if access.float, err = r.Require(FloatType(32)); err != nil {
		return access, err
	}
	intType, err := r.Require(IntType(32, true))
	if err != nil {
		return access, err
	}
	for _, c := range components {
		if access.components[c], err = r.Require(ConstantI32(intType, int32(c))); err != nil {
			return access, err
		}
	}
	if access.floatPtr, err = r.Require(PointerType(spirv.StorageClassOutput, access.float)); err != nil {
		return access, err
	}
	if pos.member >= 0 {
		if access.memberID, err = r.Require(ConstantI32(intType, int32(pos.member))); err != nil {
			return access, err
		}
		if access.vectorPtr, err = r.Require(PointerType(spirv.StorageClassOutput, pos.vector)); err != nil {
			return access, err
		}
	}
	return access, nil
}

// component emits a pointer to component c of the position.
func (a positionAccess) component(e *emitter, c int) uint32 {
	if a.member >= 0 {
		return e.op(spirv.OpAccessChain, a.floatPtr, a.variable, a.memberID, a.components[c])
	}
	return e.op(spirv.OpAccessChain, a.floatPtr, a.variable, a.components[c])
}

// storeVector emits a store of a whole vec4 to the position.
func (a positionAccess) storeVector(e *emitter, value uint32) {
	if a.member >= 0 {
		ptr := e.op(spirv.OpAccessChain, a.vectorPtr, a.variable, a.memberID)
		e.store(ptr, value)
		return
	}
	e.store(a.variable, value)
}
