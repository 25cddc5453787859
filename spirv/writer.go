package spirv

import (
	"encoding/binary"
	"math"
)

// Instruction is an unencoded SPIR-V instruction.
type Instruction struct {
	Opcode OpCode
	Words  []uint32 // result type ID, result ID, operands
}

// NewInstruction creates an instruction from its operand words.
func NewInstruction(opcode OpCode, words ...uint32) Instruction {
	return Instruction{Opcode: opcode, Words: words}
}

// Encode encodes the instruction to binary.
func (i Instruction) Encode() []uint32 {
	wordCount := uint32(len(i.Words) + 1) // +1 for opcode word
	result := make([]uint32, 0, wordCount)
	result = append(result, (wordCount<<16)|uint32(i.Opcode))
	result = append(result, i.Words...)
	return result
}

// InstructionBuilder builds SPIR-V instructions.
type InstructionBuilder struct {
	words []uint32
}

// NewInstructionBuilder creates a new instruction builder.
func NewInstructionBuilder() *InstructionBuilder {
	return &InstructionBuilder{
		words: make([]uint32, 0, 8),
	}
}

// AddWord adds a word to the instruction.
func (b *InstructionBuilder) AddWord(word uint32) {
	b.words = append(b.words, word)
}

// AddWords adds several words to the instruction.
func (b *InstructionBuilder) AddWords(words ...uint32) {
	b.words = append(b.words, words...)
}

// AddString adds a null-terminated UTF-8 string, padded to a word boundary.
func (b *InstructionBuilder) AddString(s string) {
	b.words = append(b.words, EncodeString(s)...)
}

// Build builds the instruction with the given opcode.
func (b *InstructionBuilder) Build(opcode OpCode) Instruction {
	return Instruction{
		Opcode: opcode,
		Words:  b.words,
	}
}

// EncodeString packs s into little-endian words with a null terminator.
func EncodeString(s string) []uint32 {
	bytes := append([]byte(s), 0)
	for len(bytes)%4 != 0 {
		bytes = append(bytes, 0)
	}
	words := make([]uint32, 0, len(bytes)/4)
	for i := 0; i < len(bytes); i += 4 {
		words = append(words, binary.LittleEndian.Uint32(bytes[i:]))
	}
	return words
}

// ModuleBuilder builds complete SPIR-V modules section by section.
// It is used by tools and tests that need well-formed input modules.
type ModuleBuilder struct {
	version   Version
	generator uint32

	// Sections in the order the logical layout requires.
	capabilities   []Instruction
	extensions     []Instruction
	extInstImports []Instruction
	memoryModel    *Instruction
	entryPoints    []Instruction
	executionModes []Instruction
	debugStrings   []Instruction // OpString
	debugNames     []Instruction // OpName, OpMemberName
	annotations    []Instruction // OpDecorate, OpMemberDecorate
	types          []Instruction // OpType*, OpConstant*, global OpVariable
	functions      []Instruction // OpFunction...OpFunctionEnd

	nextID uint32
}

// NewModuleBuilder creates a new SPIR-V module builder.
func NewModuleBuilder(version Version) *ModuleBuilder {
	return &ModuleBuilder{
		version:   version,
		generator: GeneratorID,
		nextID:    1,
	}
}

// AllocID allocates a new SPIR-V ID.
func (b *ModuleBuilder) AllocID() uint32 {
	id := b.nextID
	b.nextID++
	return id
}

// AddCapability adds a capability.
func (b *ModuleBuilder) AddCapability(capability Capability) {
	b.capabilities = append(b.capabilities, NewInstruction(OpCapability, uint32(capability)))
}

// AddExtension adds an extension.
func (b *ModuleBuilder) AddExtension(name string) {
	b.extensions = append(b.extensions, NewInstruction(OpExtension, EncodeString(name)...))
}

// AddExtInstImport imports an extended instruction set.
func (b *ModuleBuilder) AddExtInstImport(name string) uint32 {
	id := b.AllocID()
	builder := NewInstructionBuilder()
	builder.AddWord(id)
	builder.AddString(name)
	b.extInstImports = append(b.extInstImports, builder.Build(OpExtInstImport))
	return id
}

// SetMemoryModel sets the memory model.
func (b *ModuleBuilder) SetMemoryModel(addressing AddressingModel, memory MemoryModel) {
	inst := NewInstruction(OpMemoryModel, uint32(addressing), uint32(memory))
	b.memoryModel = &inst
}

// AddEntryPoint adds an entry point.
func (b *ModuleBuilder) AddEntryPoint(execModel ExecutionModel, funcID uint32, name string, interfaces []uint32) {
	builder := NewInstructionBuilder()
	builder.AddWord(uint32(execModel))
	builder.AddWord(funcID)
	builder.AddString(name)
	builder.AddWords(interfaces...)
	b.entryPoints = append(b.entryPoints, builder.Build(OpEntryPoint))
}

// AddExecutionMode adds an execution mode.
func (b *ModuleBuilder) AddExecutionMode(entryPoint uint32, mode ExecutionMode, params ...uint32) {
	builder := NewInstructionBuilder()
	builder.AddWord(entryPoint)
	builder.AddWord(uint32(mode))
	builder.AddWords(params...)
	b.executionModes = append(b.executionModes, builder.Build(OpExecutionMode))
}

// AddString adds a debug string.
func (b *ModuleBuilder) AddString(text string) uint32 {
	id := b.AllocID()
	builder := NewInstructionBuilder()
	builder.AddWord(id)
	builder.AddString(text)
	b.debugStrings = append(b.debugStrings, builder.Build(OpString))
	return id
}

// AddName adds a debug name.
func (b *ModuleBuilder) AddName(id uint32, name string) {
	builder := NewInstructionBuilder()
	builder.AddWord(id)
	builder.AddString(name)
	b.debugNames = append(b.debugNames, builder.Build(OpName))
}

// AddMemberName adds a debug member name.
func (b *ModuleBuilder) AddMemberName(structID, member uint32, name string) {
	builder := NewInstructionBuilder()
	builder.AddWord(structID)
	builder.AddWord(member)
	builder.AddString(name)
	b.debugNames = append(b.debugNames, builder.Build(OpMemberName))
}

// AddDecorate adds a decoration.
func (b *ModuleBuilder) AddDecorate(id uint32, decoration Decoration, params ...uint32) {
	words := append([]uint32{id, uint32(decoration)}, params...)
	b.annotations = append(b.annotations, NewInstruction(OpDecorate, words...))
}

// AddMemberDecorate adds a member decoration.
func (b *ModuleBuilder) AddMemberDecorate(structID, member uint32, decoration Decoration, params ...uint32) {
	words := append([]uint32{structID, member, uint32(decoration)}, params...)
	b.annotations = append(b.annotations, NewInstruction(OpMemberDecorate, words...))
}

// addType appends a declaration whose first operand is its result ID.
func (b *ModuleBuilder) addType(opcode OpCode, operands ...uint32) uint32 {
	id := b.AllocID()
	b.types = append(b.types, NewInstruction(opcode, append([]uint32{id}, operands...)...))
	return id
}

// addTyped appends a declaration of the form <result type> <result id> operands.
func (b *ModuleBuilder) addTyped(section *[]Instruction, opcode OpCode, resultType uint32, operands ...uint32) uint32 {
	id := b.AllocID()
	*section = append(*section, NewInstruction(opcode, append([]uint32{resultType, id}, operands...)...))
	return id
}

// AddTypeVoid adds OpTypeVoid.
func (b *ModuleBuilder) AddTypeVoid() uint32 {
	return b.addType(OpTypeVoid)
}

// AddTypeBool adds OpTypeBool.
func (b *ModuleBuilder) AddTypeBool() uint32 {
	return b.addType(OpTypeBool)
}

// AddTypeFloat adds OpTypeFloat.
func (b *ModuleBuilder) AddTypeFloat(width uint32) uint32 {
	return b.addType(OpTypeFloat, width)
}

// AddTypeInt adds OpTypeInt.
func (b *ModuleBuilder) AddTypeInt(width uint32, signed bool) uint32 {
	var signedness uint32
	if signed {
		signedness = 1
	}
	return b.addType(OpTypeInt, width, signedness)
}

// AddTypeVector adds OpTypeVector.
func (b *ModuleBuilder) AddTypeVector(componentType uint32, count uint32) uint32 {
	return b.addType(OpTypeVector, componentType, count)
}

// AddTypeMatrix adds OpTypeMatrix.
func (b *ModuleBuilder) AddTypeMatrix(columnType uint32, columnCount uint32) uint32 {
	return b.addType(OpTypeMatrix, columnType, columnCount)
}

// AddTypeArray adds OpTypeArray. length is the ID of an integer constant.
func (b *ModuleBuilder) AddTypeArray(elementType uint32, length uint32) uint32 {
	return b.addType(OpTypeArray, elementType, length)
}

// AddTypeRuntimeArray adds OpTypeRuntimeArray.
func (b *ModuleBuilder) AddTypeRuntimeArray(elementType uint32) uint32 {
	return b.addType(OpTypeRuntimeArray, elementType)
}

// AddTypeImage adds OpTypeImage. sampled is 1 for sampled images and 2 for storage images.
func (b *ModuleBuilder) AddTypeImage(sampledType uint32, dim Dim, depth, arrayed, multisampled bool, sampled uint32, format ImageFormat) uint32 {
	return b.addType(OpTypeImage, sampledType, uint32(dim),
		boolWord(depth), boolWord(arrayed), boolWord(multisampled), sampled, uint32(format))
}

// AddTypeSampler adds OpTypeSampler.
func (b *ModuleBuilder) AddTypeSampler() uint32 {
	return b.addType(OpTypeSampler)
}

// AddTypeSampledImage adds OpTypeSampledImage.
func (b *ModuleBuilder) AddTypeSampledImage(imageType uint32) uint32 {
	return b.addType(OpTypeSampledImage, imageType)
}

// AddTypePointer adds OpTypePointer.
func (b *ModuleBuilder) AddTypePointer(storageClass StorageClass, baseType uint32) uint32 {
	return b.addType(OpTypePointer, uint32(storageClass), baseType)
}

// AddTypeFunction adds OpTypeFunction.
func (b *ModuleBuilder) AddTypeFunction(returnType uint32, paramTypes ...uint32) uint32 {
	return b.addType(OpTypeFunction, append([]uint32{returnType}, paramTypes...)...)
}

// AddTypeStruct adds OpTypeStruct.
func (b *ModuleBuilder) AddTypeStruct(memberTypes ...uint32) uint32 {
	return b.addType(OpTypeStruct, memberTypes...)
}

// AddConstant adds OpConstant.
func (b *ModuleBuilder) AddConstant(typeID uint32, values ...uint32) uint32 {
	return b.addTyped(&b.types, OpConstant, typeID, values...)
}

// AddConstantFloat32 adds a 32-bit float constant.
func (b *ModuleBuilder) AddConstantFloat32(typeID uint32, value float32) uint32 {
	return b.AddConstant(typeID, math.Float32bits(value))
}

// AddConstantFloat64 adds a 64-bit float constant.
func (b *ModuleBuilder) AddConstantFloat64(typeID uint32, value float64) uint32 {
	bits := math.Float64bits(value)
	return b.AddConstant(typeID, uint32(bits), uint32(bits>>32))
}

// AddConstantInt32 adds a 32-bit integer constant.
func (b *ModuleBuilder) AddConstantInt32(typeID uint32, value int32) uint32 {
	return b.AddConstant(typeID, uint32(value))
}

// AddConstantComposite adds OpConstantComposite.
func (b *ModuleBuilder) AddConstantComposite(typeID uint32, constituents ...uint32) uint32 {
	return b.addTyped(&b.types, OpConstantComposite, typeID, constituents...)
}

// AddVariable adds a global OpVariable.
func (b *ModuleBuilder) AddVariable(pointerType uint32, storageClass StorageClass) uint32 {
	return b.addTyped(&b.types, OpVariable, pointerType, uint32(storageClass))
}

// AddFunction adds a function definition.
func (b *ModuleBuilder) AddFunction(funcType uint32, returnType uint32, control FunctionControl) uint32 {
	return b.addTyped(&b.functions, OpFunction, returnType, uint32(control), funcType)
}

// AddFunctionParameter adds a function parameter.
func (b *ModuleBuilder) AddFunctionParameter(typeID uint32) uint32 {
	return b.addTyped(&b.functions, OpFunctionParameter, typeID)
}

// AddLocalVariable adds a Function-storage OpVariable inside the current function.
func (b *ModuleBuilder) AddLocalVariable(pointerType uint32) uint32 {
	return b.addTyped(&b.functions, OpVariable, pointerType, uint32(StorageClassFunction))
}

// AddLabel adds a label.
func (b *ModuleBuilder) AddLabel() uint32 {
	id := b.AllocID()
	b.functions = append(b.functions, NewInstruction(OpLabel, id))
	return id
}

// AddLabelID adds a label with a previously allocated ID, for forward branches.
func (b *ModuleBuilder) AddLabelID(id uint32) {
	b.functions = append(b.functions, NewInstruction(OpLabel, id))
}

// AddReturn adds OpReturn.
func (b *ModuleBuilder) AddReturn() {
	b.functions = append(b.functions, NewInstruction(OpReturn))
}

// AddReturnValue adds OpReturnValue.
func (b *ModuleBuilder) AddReturnValue(valueID uint32) {
	b.functions = append(b.functions, NewInstruction(OpReturnValue, valueID))
}

// AddFunctionEnd adds OpFunctionEnd.
func (b *ModuleBuilder) AddFunctionEnd() {
	b.functions = append(b.functions, NewInstruction(OpFunctionEnd))
}

// AddBinaryOp adds a binary operation instruction.
func (b *ModuleBuilder) AddBinaryOp(opcode OpCode, resultType uint32, left uint32, right uint32) uint32 {
	return b.addTyped(&b.functions, opcode, resultType, left, right)
}

// AddUnaryOp adds a unary operation instruction.
func (b *ModuleBuilder) AddUnaryOp(opcode OpCode, resultType uint32, operand uint32) uint32 {
	return b.addTyped(&b.functions, opcode, resultType, operand)
}

// AddLoad adds OpLoad.
func (b *ModuleBuilder) AddLoad(resultType uint32, pointer uint32) uint32 {
	return b.addTyped(&b.functions, OpLoad, resultType, pointer)
}

// AddStore adds OpStore.
func (b *ModuleBuilder) AddStore(pointer uint32, value uint32) {
	b.functions = append(b.functions, NewInstruction(OpStore, pointer, value))
}

// AddAccessChain adds OpAccessChain.
func (b *ModuleBuilder) AddAccessChain(resultType uint32, base uint32, indices ...uint32) uint32 {
	return b.addTyped(&b.functions, OpAccessChain, resultType, append([]uint32{base}, indices...)...)
}

// AddCompositeConstruct adds OpCompositeConstruct.
func (b *ModuleBuilder) AddCompositeConstruct(resultType uint32, constituents ...uint32) uint32 {
	return b.addTyped(&b.functions, OpCompositeConstruct, resultType, constituents...)
}

// AddCompositeExtract adds OpCompositeExtract.
func (b *ModuleBuilder) AddCompositeExtract(resultType uint32, composite uint32, indices ...uint32) uint32 {
	return b.addTyped(&b.functions, OpCompositeExtract, resultType, append([]uint32{composite}, indices...)...)
}

// AddSelect adds OpSelect.
func (b *ModuleBuilder) AddSelect(resultType uint32, condition uint32, accept uint32, reject uint32) uint32 {
	return b.addTyped(&b.functions, OpSelect, resultType, condition, accept, reject)
}

// AddSelectionMerge adds OpSelectionMerge.
func (b *ModuleBuilder) AddSelectionMerge(mergeLabel uint32, control SelectionControl) {
	b.functions = append(b.functions, NewInstruction(OpSelectionMerge, mergeLabel, uint32(control)))
}

// AddBranch adds OpBranch.
func (b *ModuleBuilder) AddBranch(target uint32) {
	b.functions = append(b.functions, NewInstruction(OpBranch, target))
}

// AddBranchConditional adds OpBranchConditional.
func (b *ModuleBuilder) AddBranchConditional(condition uint32, trueLabel uint32, falseLabel uint32) {
	b.functions = append(b.functions, NewInstruction(OpBranchConditional, condition, trueLabel, falseLabel))
}

// AddKill adds OpKill (fragment shader discard).
func (b *ModuleBuilder) AddKill() {
	b.functions = append(b.functions, NewInstruction(OpKill))
}

// Words generates the module as words. The bound is one past the last allocated ID.
func (b *ModuleBuilder) Words() []uint32 {
	words := []uint32{MagicNumber, versionToWord(b.version), b.generator, b.nextID, 0}

	sections := [][]Instruction{b.capabilities, b.extensions, b.extInstImports}
	if b.memoryModel != nil {
		sections = append(sections, []Instruction{*b.memoryModel})
	}
	sections = append(sections,
		b.entryPoints, b.executionModes, b.debugStrings, b.debugNames,
		b.annotations, b.types, b.functions)

	for _, section := range sections {
		for _, inst := range section {
			words = append(words, inst.Encode()...)
		}
	}
	return words
}

// Build generates the final SPIR-V binary in little-endian byte order.
func (b *ModuleBuilder) Build() []byte {
	words := b.Words()
	buffer := make([]byte, len(words)*4)
	for i, word := range words {
		binary.LittleEndian.PutUint32(buffer[i*4:], word)
	}
	return buffer
}

// Module builds the binary and wraps it as a Module.
func (b *ModuleBuilder) Module() (*Module, error) {
	return FromWords(b.Words())
}

func boolWord(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

// versionToWord converts Version to SPIR-V word format.
func versionToWord(v Version) uint32 {
	return (uint32(v.Major) << 16) | (uint32(v.Minor) << 8)
}
