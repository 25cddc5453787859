package patch

import (
	"testing"

	"github.com/gogpu/spvkit/spirv"
)

type fragmentOptions struct {
	// literal stores the constant vec4(1) instead of the loaded input.
	literal bool

	// outputs is the number of vec4 outputs, at locations 0..outputs-1.
	outputs int

	// inputs lists the locations of the vec4 inputs; the first is stored.
	inputs []uint32
}

type fragmentFixture struct {
	module  *spirv.Module
	main    uint32
	inputs  []uint32
	outputs []uint32
}

// newFragment builds a fragment shader that copies its first input (or a
// white literal) to every output.
func newFragment(t *testing.T, opts fragmentOptions) fragmentFixture {
	t.Helper()

	b := spirv.NewModuleBuilder(spirv.Version1_3)
	b.AddCapability(spirv.CapabilityShader)
	b.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)

	voidType := b.AddTypeVoid()
	funcType := b.AddTypeFunction(voidType)
	floatType := b.AddTypeFloat(32)
	vec4 := b.AddTypeVector(floatType, 4)
	inPtr := b.AddTypePointer(spirv.StorageClassInput, vec4)
	outPtr := b.AddTypePointer(spirv.StorageClassOutput, vec4)

	var white uint32
	if opts.literal {
		one := b.AddConstantFloat32(floatType, 1)
		white = b.AddConstantComposite(vec4, one, one, one, one)
	}

	fx := fragmentFixture{}
	var iface []uint32
	for _, location := range opts.inputs {
		in := b.AddVariable(inPtr, spirv.StorageClassInput)
		b.AddDecorate(in, spirv.DecorationLocation, location)
		fx.inputs = append(fx.inputs, in)
		iface = append(iface, in)
	}
	for i := 0; i < opts.outputs; i++ {
		out := b.AddVariable(outPtr, spirv.StorageClassOutput)
		b.AddDecorate(out, spirv.DecorationLocation, uint32(i))
		fx.outputs = append(fx.outputs, out)
		iface = append(iface, out)
	}

	fx.main = b.AddFunction(funcType, voidType, spirv.FunctionControlNone)
	b.AddLabel()
	value := white
	if !opts.literal && len(fx.inputs) > 0 {
		value = b.AddLoad(vec4, fx.inputs[0])
	}
	if value != 0 {
		for _, out := range fx.outputs {
			b.AddStore(out, value)
		}
	}
	b.AddReturn()
	b.AddFunctionEnd()

	b.AddEntryPoint(spirv.ExecutionModelFragment, fx.main, "main", iface)
	b.AddExecutionMode(fx.main, spirv.ExecutionModeOriginUpperLeft)

	m, err := b.Module()
	if err != nil {
		t.Fatalf("fragment fixture: %v", err)
	}
	fx.module = m
	return fx
}

type vertexOptions struct {
	version spirv.Version

	// locations lists the vec4 outputs; each is written whole and through
	// an access chain to its x component.
	locations []uint32

	// block declares the position as a gl_PerVertex member.
	block bool

	// branches adds an early return taken when the input z is negative.
	branches bool

	// noPosition omits the BuiltIn Position decoration.
	noPosition bool
}

type vertexFixture struct {
	module   *spirv.Module
	main     uint32
	input    uint32
	position uint32
	outputs  map[uint32]uint32 // location -> variable
}

// newVertex builds a vertex shader that copies its input position to the
// clip-space position and writes constants to its varyings.
func newVertex(t *testing.T, opts vertexOptions) vertexFixture {
	t.Helper()

	version := opts.version
	if version == (spirv.Version{}) {
		version = spirv.Version1_3
	}
	b := spirv.NewModuleBuilder(version)
	b.AddCapability(spirv.CapabilityShader)
	b.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)

	voidType := b.AddTypeVoid()
	funcType := b.AddTypeFunction(voidType)
	floatType := b.AddTypeFloat(32)
	vec4 := b.AddTypeVector(floatType, 4)
	intType := b.AddTypeInt(32, true)
	zeroIndex := b.AddConstantInt32(intType, 0)
	zero := b.AddConstantFloat32(floatType, 0)
	half := b.AddConstantFloat32(floatType, 0.5)
	halves := b.AddConstantComposite(vec4, half, half, half, half)
	inPtr := b.AddTypePointer(spirv.StorageClassInput, vec4)
	outVec4Ptr := b.AddTypePointer(spirv.StorageClassOutput, vec4)
	outFloatPtr := b.AddTypePointer(spirv.StorageClassOutput, floatType)

	fx := vertexFixture{outputs: make(map[uint32]uint32)}

	fx.input = b.AddVariable(inPtr, spirv.StorageClassInput)
	b.AddName(fx.input, "inPosition")
	b.AddDecorate(fx.input, spirv.DecorationLocation, 0)
	iface := []uint32{fx.input}

	if opts.block {
		perVertex := b.AddTypeStruct(vec4, floatType)
		b.AddName(perVertex, "gl_PerVertex")
		b.AddDecorate(perVertex, spirv.DecorationBlock)
		if !opts.noPosition {
			b.AddMemberDecorate(perVertex, 0, spirv.DecorationBuiltIn, uint32(spirv.BuiltInPosition))
		}
		b.AddMemberDecorate(perVertex, 1, spirv.DecorationBuiltIn, uint32(spirv.BuiltInPointSize))
		blockPtr := b.AddTypePointer(spirv.StorageClassOutput, perVertex)
		fx.position = b.AddVariable(blockPtr, spirv.StorageClassOutput)
	} else {
		fx.position = b.AddVariable(outVec4Ptr, spirv.StorageClassOutput)
		if !opts.noPosition {
			b.AddDecorate(fx.position, spirv.DecorationBuiltIn, uint32(spirv.BuiltInPosition))
		}
	}
	iface = append(iface, fx.position)

	for _, location := range opts.locations {
		out := b.AddVariable(outVec4Ptr, spirv.StorageClassOutput)
		b.AddDecorate(out, spirv.DecorationLocation, location)
		b.AddDecorate(out, spirv.DecorationNoPerspective)
		fx.outputs[location] = out
		iface = append(iface, out)
	}

	var boolType uint32
	if opts.branches {
		boolType = b.AddTypeBool()
	}

	fx.main = b.AddFunction(funcType, voidType, spirv.FunctionControlNone)
	b.AddName(fx.main, "main")
	b.AddLabel()
	value := b.AddLoad(vec4, fx.input)
	if opts.block {
		ptr := b.AddAccessChain(outVec4Ptr, fx.position, zeroIndex)
		b.AddStore(ptr, value)
	} else {
		b.AddStore(fx.position, value)
	}
	for _, location := range opts.locations {
		out := fx.outputs[location]
		b.AddStore(out, halves)
		x := b.AddAccessChain(outFloatPtr, out, zeroIndex)
		b.AddStore(x, zero)
	}

	if opts.branches {
		z := b.AddCompositeExtract(floatType, value, 2)
		negative := b.AddBinaryOp(spirv.OpFOrdLessThan, boolType, z, zero)
		early := b.AllocID()
		merge := b.AllocID()
		b.AddSelectionMerge(merge, spirv.SelectionControlNone)
		b.AddBranchConditional(negative, early, merge)
		b.AddLabelID(early)
		b.AddReturn()
		b.AddLabelID(merge)
	}
	b.AddReturn()
	b.AddFunctionEnd()

	b.AddEntryPoint(spirv.ExecutionModelVertex, fx.main, "main", iface)

	m, err := b.Module()
	if err != nil {
		t.Fatalf("vertex fixture: %v", err)
	}
	fx.module = m
	return fx
}

// find returns the instructions with opcode.
func find(t *testing.T, m *spirv.Module, opcode spirv.OpCode) []spirv.Inst {
	t.Helper()
	var found []spirv.Inst
	err := m.Walk(func(inst spirv.Inst) error {
		if inst.Opcode == opcode {
			found = append(found, inst)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	return found
}

// checkModule asserts the module is well formed and its bound is exact.
func checkModule(t *testing.T, m *spirv.Module) {
	t.Helper()
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := m.CheckBound(); err != nil {
		t.Fatalf("CheckBound: %v", err)
	}
	// Re-parsing the encoded bytes must succeed too.
	if _, err := spirv.Parse(m.Bytes()); err != nil {
		t.Fatalf("Parse(Bytes()): %v", err)
	}
}
