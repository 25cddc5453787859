package patch

import (
	"github.com/gogpu/spvkit/spirv"
)

// Interface is the interface record of one entry point interface ID.
type Interface struct {
	ID          uint32
	Model       spirv.ExecutionModel
	Storage     spirv.StorageClass
	Location    uint32
	HasLocation bool

	// BuiltIn is set for built-in variables and for blocks whose members
	// are built-ins, such as gl_PerVertex.
	BuiltIn bool

	PointerType uint32
	Pointee     uint32

	// Variable is the declaring OpVariable.
	Variable spirv.Inst
}

type variable struct {
	inst    spirv.Inst
	pointer uint32
	storage spirv.StorageClass
}

// Interfaces builds the interface records of every entry point in one
// forward scan. An ID listed by several entry points is recorded once, for
// the first. It fails if an interface ID has no OpVariable or its pointer
// type is not declared.
func Interfaces(m *spirv.Module) ([]Interface, error) {
	entries, err := m.EntryPoints()
	if err != nil {
		return nil, err
	}

	locations := make(map[uint32]uint32)
	builtins := make(map[uint32]bool)
	memberBuiltins := make(map[uint32]bool)
	pointers := make(map[uint32][2]uint32)
	variables := make(map[uint32]variable)

	err = m.Walk(func(inst spirv.Inst) error {
		ops := m.Operands(inst)
		switch inst.Opcode {
		case spirv.OpDecorate:
			if len(ops) < 2 {
				return spirv.NewErrorAt(spirv.ErrFormat, inst.Offset, "short OpDecorate")
			}
			switch spirv.Decoration(ops[1]) {
			case spirv.DecorationLocation:
				if len(ops) < 3 {
					return spirv.NewErrorAt(spirv.ErrFormat, inst.Offset, "Location without value")
				}
				if _, ok := locations[ops[0]]; !ok {
					locations[ops[0]] = ops[2]
				}
			case spirv.DecorationBuiltIn:
				builtins[ops[0]] = true
			}
		case spirv.OpMemberDecorate:
			if len(ops) >= 3 && spirv.Decoration(ops[2]) == spirv.DecorationBuiltIn {
				memberBuiltins[ops[0]] = true
			}
		case spirv.OpTypePointer:
			if len(ops) >= 3 {
				pointers[ops[0]] = [2]uint32{ops[1], ops[2]}
			}
		case spirv.OpVariable:
			if len(ops) < 3 {
				return spirv.NewErrorAt(spirv.ErrFormat, inst.Offset, "short OpVariable")
			}
			if _, ok := variables[ops[1]]; !ok {
				variables[ops[1]] = variable{inst: inst, pointer: ops[0], storage: spirv.StorageClass(ops[2])}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var records []Interface
	seen := make(map[uint32]bool)
	for _, entry := range entries {
		for _, id := range entry.Interface {
			if seen[id] {
				continue
			}
			seen[id] = true

			v, ok := variables[id]
			if !ok {
				return nil, spirv.NewErrorAt(spirv.ErrPrecondition, entry.Inst.Offset,
					"interface id %%%d has no OpVariable", id)
			}
			ptr, ok := pointers[v.pointer]
			if !ok {
				return nil, spirv.NewErrorAt(spirv.ErrPrecondition, v.inst.Offset,
					"interface id %%%d has undeclared pointer type %%%d", id, v.pointer)
			}
			location, hasLocation := locations[id]
			records = append(records, Interface{
				ID:          id,
				Model:       entry.Model,
				Storage:     v.storage,
				Location:    location,
				HasLocation: hasLocation,
				BuiltIn:     builtins[id] || memberBuiltins[ptr[1]],
				PointerType: v.pointer,
				Pointee:     ptr[1],
				Variable:    v.inst,
			})
		}
	}
	return records, nil
}
