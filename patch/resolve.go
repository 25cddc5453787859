package patch

import (
	"slices"

	"github.com/gogpu/spvkit/spirv"
)

// TypeInfo is the defining instruction of a type ID.
type TypeInfo struct {
	Opcode spirv.OpCode

	// Operands are the words after the result ID.
	Operands []uint32
}

// Resolver discovers and synthesizes global declarations for one pass run.
//
// Discovery scans the global section once; the first declaration matching a
// key wins. Synthesized declarations are queued on the Editor at the
// declaration point, in the order they are required, so a declaration is
// always emitted after the declarations it references.
type Resolver struct {
	module    *spirv.Module
	editor    *spirv.Editor
	known     map[Key]uint32
	types     map[uint32]TypeInfo
	constants map[uint32]uint32 // constant ID -> type ID
	declare   int
}

// NewResolver scans the module behind editor. The declaration point starts
// at the first OpFunction, which is the end of the global section.
func NewResolver(editor *spirv.Editor) (*Resolver, error) {
	m := editor.Module()
	r := &Resolver{
		module:    m,
		editor:    editor,
		known:     make(map[Key]uint32),
		types:     make(map[uint32]TypeInfo),
		constants: make(map[uint32]uint32),
	}

	insts, err := m.Instructions()
	if err != nil {
		return nil, err
	}
	r.declare = m.Len()
	for _, inst := range insts {
		if inst.Opcode == spirv.OpFunction {
			r.declare = inst.Offset
			break
		}
		if err := r.record(inst); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// minWords is the shortest valid encoding of the declarations the resolver reads.
var minWords = map[spirv.OpCode]int{
	spirv.OpTypeVoid:          2,
	spirv.OpTypeBool:          2,
	spirv.OpTypeSampler:       2,
	spirv.OpTypeFloat:         3,
	spirv.OpTypeInt:           4,
	spirv.OpTypeVector:        4,
	spirv.OpTypeMatrix:        4,
	spirv.OpTypeImage:         9,
	spirv.OpTypeSampledImage:  3,
	spirv.OpTypeArray:         4,
	spirv.OpTypeRuntimeArray:  3,
	spirv.OpTypeStruct:        2,
	spirv.OpTypePointer:       4,
	spirv.OpTypeFunction:      3,
	spirv.OpConstant:          4,
	spirv.OpConstantComposite: 3,
}

func (r *Resolver) record(inst spirv.Inst) error {
	need, ok := minWords[inst.Opcode]
	if !ok {
		return nil
	}
	if inst.WordCount < need {
		return spirv.NewErrorAt(spirv.ErrFormat, inst.Offset, "%s with %d words", inst.Opcode, inst.WordCount)
	}
	ops := r.module.Operands(inst)

	switch inst.Opcode {
	case spirv.OpConstant:
		r.constants[ops[1]] = ops[0]
		if inst.WordCount != 4 {
			return nil
		}
		switch t := r.types[ops[0]]; {
		case t.Opcode == spirv.OpTypeFloat && t.Operands[0] == 32:
			r.remember(Key{kind: KeyConstantF32, a: ops[0], b: ops[2]}, ops[1])
		case t.Opcode == spirv.OpTypeInt && t.Operands[0] == 32:
			r.remember(Key{kind: KeyConstantI32, a: ops[0], b: ops[2]}, ops[1])
		}
		return nil
	case spirv.OpConstantComposite:
		r.constants[ops[1]] = ops[0]
		if parts := ops[2:]; len(parts) > 0 && len(parts) <= maxCompositeParts {
			r.remember(ConstantComposite(ops[0], parts...), ops[1])
		}
		return nil
	}

	id := ops[0]
	r.types[id] = TypeInfo{Opcode: inst.Opcode, Operands: slices.Clone(ops[1:])}
	switch inst.Opcode {
	case spirv.OpTypeFloat:
		r.remember(FloatType(ops[1]), id)
	case spirv.OpTypeInt:
		r.remember(IntType(ops[1], ops[2] == 1), id)
	case spirv.OpTypeBool:
		r.remember(BoolType(), id)
	case spirv.OpTypeVector:
		r.remember(VectorType(ops[1], ops[2]), id)
	case spirv.OpTypePointer:
		r.remember(PointerType(spirv.StorageClass(ops[1]), ops[2]), id)
	}
	return nil
}

func (r *Resolver) remember(k Key, id uint32) {
	if _, ok := r.known[k]; !ok {
		r.known[k] = id
	}
}

// Lookup returns the ID bound to k, if any.
func (r *Resolver) Lookup(k Key) (uint32, bool) {
	id, ok := r.known[k]
	return id, ok
}

// Require returns the ID bound to k, synthesizing the declaration if absent.
// Keys whose referenced IDs are not declarations of the expected category
// fail with ErrUnknownKey.
func (r *Resolver) Require(k Key) (uint32, error) {
	if id, ok := r.known[k]; ok {
		return id, nil
	}
	if err := r.check(k); err != nil {
		return 0, err
	}

	id := r.editor.AllocID()
	inst := k.instruction(id)
	if err := r.editor.InsertInstruction(r.declare, inst); err != nil {
		return 0, err
	}
	switch k.kind {
	case KeyConstantF32, KeyConstantI32, KeyConstantComposite:
		r.constants[id] = k.a
	default:
		r.types[id] = TypeInfo{Opcode: inst.Opcode, Operands: slices.Clone(inst.Words[1:])}
	}
	r.known[k] = id
	return id, nil
}

// check verifies that the IDs a key references exist with the right shape.
func (r *Resolver) check(k Key) error {
	if !k.valid() {
		return spirv.NewError(spirv.ErrUnknownKey, "cannot synthesize %s", k)
	}
	isScalar := func(id uint32) bool {
		t, ok := r.types[id]
		return ok && (t.Opcode == spirv.OpTypeFloat || t.Opcode == spirv.OpTypeInt || t.Opcode == spirv.OpTypeBool)
	}
	scalarOf := func(id uint32, opcode spirv.OpCode) bool {
		t, ok := r.types[id]
		return ok && t.Opcode == opcode && t.Operands[0] == 32
	}

	var ok bool
	switch k.kind {
	case KeyFloatType, KeyIntType:
		ok = k.a == 16 || k.a == 32 || k.a == 64
	case KeyBoolType:
		ok = true
	case KeyVectorType:
		ok = isScalar(k.a) && k.b >= 2 && k.b <= 4
	case KeyPointerType:
		_, ok = r.types[k.b]
	case KeyConstantF32:
		ok = scalarOf(k.a, spirv.OpTypeFloat)
	case KeyConstantI32:
		ok = scalarOf(k.a, spirv.OpTypeInt)
	case KeyConstantComposite:
		t, found := r.types[k.a]
		if !found || t.Opcode != spirv.OpTypeVector {
			break
		}
		ok = t.Operands[1] == uint32(k.n)
		for _, part := range k.parts[:k.n] {
			if typeID, isConst := r.constants[part]; !isConst || typeID != t.Operands[0] {
				ok = false
			}
		}
	}
	if !ok {
		return spirv.NewError(spirv.ErrUnknownKey, "cannot synthesize %s", k)
	}
	return nil
}

// Type returns the defining instruction of a type ID.
func (r *Resolver) Type(id uint32) (TypeInfo, bool) {
	t, ok := r.types[id]
	return t, ok
}

// IsFloatVector reports whether id is a vector of n floats of the given width.
func (r *Resolver) IsFloatVector(id uint32, n, width uint32) bool {
	t, ok := r.types[id]
	if !ok || t.Opcode != spirv.OpTypeVector || t.Operands[1] != n {
		return false
	}
	c, ok := r.types[t.Operands[0]]
	return ok && c.Opcode == spirv.OpTypeFloat && c.Operands[0] == width
}

// Pointee returns the storage class and pointee of a pointer type ID.
func (r *Resolver) Pointee(pointer uint32) (spirv.StorageClass, uint32, bool) {
	t, ok := r.types[pointer]
	if !ok || t.Opcode != spirv.OpTypePointer {
		return 0, 0, false
	}
	return spirv.StorageClass(t.Operands[0]), t.Operands[1], true
}

// DeclarationPoint returns the original-module offset where synthesized
// declarations are inserted.
func (r *Resolver) DeclarationPoint() int {
	return r.declare
}

// Editor returns the editor synthesized declarations are queued on.
func (r *Resolver) Editor() *spirv.Editor {
	return r.editor
}
