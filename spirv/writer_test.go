package spirv

import (
	"encoding/binary"
	"testing"
)

func TestModuleBuilder_MinimalModule(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	builder.AddCapability(CapabilityShader)
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	data := builder.Build()

	// Header (20 bytes) + OpCapability (8) + OpMemoryModel (12)
	if len(data) != 40 {
		t.Fatalf("module size = %d bytes, want 40", len(data))
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != MagicNumber {
		t.Errorf("Invalid magic number: got 0x%08X, want 0x%08X", magic, MagicNumber)
	}

	version := binary.LittleEndian.Uint32(data[4:8])
	expectedVersion := uint32(1<<16 | 3<<8) // Version 1.3
	if version != expectedVersion {
		t.Errorf("Invalid version: got 0x%08X, want 0x%08X", version, expectedVersion)
	}

	generator := binary.LittleEndian.Uint32(data[8:12])
	if generator != GeneratorID {
		t.Errorf("Invalid generator: got 0x%08X, want 0x%08X", generator, GeneratorID)
	}

	// No IDs allocated: bound is 1.
	if bound := binary.LittleEndian.Uint32(data[12:16]); bound != 1 {
		t.Errorf("Bound = %d, want 1", bound)
	}

	if schema := binary.LittleEndian.Uint32(data[16:20]); schema != 0 {
		t.Errorf("Schema should be 0, got %d", schema)
	}
}

func TestModuleBuilder_WithTypes(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	builder.AddCapability(CapabilityShader)
	builder.SetMemoryModel(AddressingModelLogical, MemoryModelGLSL450)

	voidType := builder.AddTypeVoid()
	floatType := builder.AddTypeFloat(32)
	intType := builder.AddTypeInt(32, true)
	vec4Type := builder.AddTypeVector(floatType, 4)

	m, err := builder.Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if m.Bound() != vec4Type+1 {
		t.Errorf("Bound = %d, want %d", m.Bound(), vec4Type+1)
	}

	want := []struct {
		op       OpCode
		operands []uint32
	}{
		{OpTypeVoid, []uint32{voidType}},
		{OpTypeFloat, []uint32{floatType, 32}},
		{OpTypeInt, []uint32{intType, 32, 1}},
		{OpTypeVector, []uint32{vec4Type, floatType, 4}},
	}
	insts, err := m.Instructions()
	if err != nil {
		t.Fatal(err)
	}
	types := insts[2:]
	if len(types) != len(want) {
		t.Fatalf("got %d type instructions, want %d", len(types), len(want))
	}
	for i, w := range want {
		if types[i].Opcode != w.op {
			t.Errorf("type %d opcode = %v, want %v", i, types[i].Opcode, w.op)
			continue
		}
		for j, operand := range w.operands {
			if got := m.Operands(types[i])[j]; got != operand {
				t.Errorf("%v operand %d = %d, want %d", w.op, j, got, operand)
			}
		}
	}
}

func TestModuleBuilder_ImageTypes(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)
	floatType := builder.AddTypeFloat(32)
	image := builder.AddTypeImage(floatType, Dim2D, false, true, false, 2, ImageFormatRgba8)
	sampled := builder.AddTypeSampledImage(image)

	m, err := builder.Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	insts, _ := m.Instructions()
	ops := m.Operands(insts[1])
	if insts[1].Opcode != OpTypeImage || ops[0] != image || ops[2] != uint32(Dim2D) ||
		ops[4] != 1 || ops[6] != 2 || ImageFormat(ops[7]) != ImageFormatRgba8 {
		t.Errorf("OpTypeImage operands = %v", ops)
	}
	if insts[2].Opcode != OpTypeSampledImage || m.Operands(insts[2])[1] != image {
		t.Errorf("OpTypeSampledImage = %v %v", insts[2].Opcode, m.Operands(insts[2]))
	}
	if sampled != image+1 {
		t.Errorf("sampled image id = %d", sampled)
	}
}

func TestInstructionBuilder_String(t *testing.T) {
	builder := NewInstructionBuilder()
	builder.AddString("hello")

	inst := builder.Build(OpName)
	encoded := inst.Encode()

	opcodeWord := encoded[0]
	wordCount := opcodeWord >> 16
	opcode := OpCode(opcodeWord & 0xFFFF)

	if opcode != OpName {
		t.Errorf("Wrong opcode: got %d, want %d", opcode, OpName)
	}

	// "hello\0" pads to two words, plus the opcode word.
	if wordCount != 3 {
		t.Errorf("word count = %d, want 3", wordCount)
	}
}

func TestEncodeString_WordAligned(t *testing.T) {
	// A four-byte string still needs a terminating word.
	words := EncodeString("main")
	if len(words) != 2 || words[1] != 0 {
		t.Errorf("EncodeString(\"main\") = %v", words)
	}
}

func TestInstructionBuilder_Float32(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	floatType := builder.AddTypeFloat(32)
	constID := builder.AddConstantFloat32(floatType, 0.99)

	m, err := builder.Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	insts, _ := m.Instructions()
	ops := m.Operands(insts[1])
	if ops[0] != floatType || ops[1] != constID || ops[2] != 0x3F7D70A4 {
		t.Errorf("OpConstant operands = %#x", ops)
	}
}

func TestModuleBuilder_IDAllocation(t *testing.T) {
	builder := NewModuleBuilder(Version1_3)

	id1 := builder.AllocID()
	id2 := builder.AllocID()
	id3 := builder.AllocID()

	if id1 >= id2 || id2 >= id3 {
		t.Error("IDs should be strictly increasing")
	}

	if id1 == 0 || id2 == 0 || id3 == 0 {
		t.Error("IDs should never be 0")
	}
}
