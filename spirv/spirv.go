package spirv

import "fmt"

// Version represents a SPIR-V version.
type Version struct {
	Major uint8
	Minor uint8
}

// Common SPIR-V versions
var (
	Version1_0 = Version{1, 0}
	Version1_3 = Version{1, 3}
	Version1_4 = Version{1, 4}
	Version1_5 = Version{1, 5}
	Version1_6 = Version{1, 6}
)

// String returns the version as "major.minor".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// versionFromWord decodes the header version word.
func versionFromWord(word uint32) Version {
	return Version{Major: uint8(word >> 16), Minor: uint8(word >> 8)}
}

// SPIR-V magic number and constants
const (
	MagicNumber = 0x07230203
	GeneratorID = 0x00000000 // Unregistered generator

	// HeaderWords is the size of the fixed preamble:
	// magic, version, generator, bound, schema.
	HeaderWords = 5
)

// Header word indices.
const (
	wordMagic = iota
	wordVersion
	wordGenerator
	wordBound
	wordSchema
)

// OpCode represents a SPIR-V opcode.
type OpCode uint16

// Opcodes read or emitted by this module.
const (
	OpNop                    OpCode = 0
	OpUndef                  OpCode = 1
	OpSourceContinued        OpCode = 2
	OpSource                 OpCode = 3
	OpSourceExtension        OpCode = 4
	OpName                   OpCode = 5
	OpMemberName             OpCode = 6
	OpString                 OpCode = 7
	OpLine                   OpCode = 8
	OpExtension              OpCode = 10
	OpExtInstImport          OpCode = 11
	OpExtInst                OpCode = 12
	OpMemoryModel            OpCode = 14
	OpEntryPoint             OpCode = 15
	OpExecutionMode          OpCode = 16
	OpCapability             OpCode = 17
	OpTypeVoid               OpCode = 19
	OpTypeBool               OpCode = 20
	OpTypeInt                OpCode = 21
	OpTypeFloat              OpCode = 22
	OpTypeVector             OpCode = 23
	OpTypeMatrix             OpCode = 24
	OpTypeImage              OpCode = 25
	OpTypeSampler            OpCode = 26
	OpTypeSampledImage       OpCode = 27
	OpTypeArray              OpCode = 28
	OpTypeRuntimeArray       OpCode = 29
	OpTypeStruct             OpCode = 30
	OpTypeOpaque             OpCode = 31
	OpTypePointer            OpCode = 32
	OpTypeFunction           OpCode = 33
	OpConstantTrue           OpCode = 41
	OpConstantFalse          OpCode = 42
	OpConstant               OpCode = 43
	OpConstantComposite      OpCode = 44
	OpConstantNull           OpCode = 46
	OpSpecConstantTrue       OpCode = 48
	OpSpecConstantFalse      OpCode = 49
	OpSpecConstant           OpCode = 50
	OpSpecConstantComposite  OpCode = 51
	OpFunction               OpCode = 54
	OpFunctionParameter      OpCode = 55
	OpFunctionEnd            OpCode = 56
	OpFunctionCall           OpCode = 57
	OpVariable               OpCode = 59
	OpLoad                   OpCode = 61
	OpStore                  OpCode = 62
	OpCopyMemory             OpCode = 63
	OpAccessChain            OpCode = 65
	OpInBoundsAccessChain    OpCode = 66
	OpPtrAccessChain         OpCode = 67
	OpDecorate               OpCode = 71
	OpMemberDecorate         OpCode = 72
	OpDecorationGroup        OpCode = 73
	OpVectorShuffle          OpCode = 79
	OpCompositeConstruct     OpCode = 80
	OpCompositeExtract       OpCode = 81
	OpCompositeInsert        OpCode = 82
	OpCopyObject             OpCode = 83
	OpSampledImage           OpCode = 86
	OpImageSampleImplicitLod OpCode = 87
	OpImageRead              OpCode = 98
	OpImageWrite             OpCode = 99
	OpSNegate                OpCode = 126
	OpFNegate                OpCode = 127
	OpIAdd                   OpCode = 128
	OpFAdd                   OpCode = 129
	OpISub                   OpCode = 130
	OpFSub                   OpCode = 131
	OpIMul                   OpCode = 132
	OpFMul                   OpCode = 133
	OpFDiv                   OpCode = 136
	OpVectorTimesScalar      OpCode = 142
	OpMatrixTimesVector      OpCode = 145
	OpDot                    OpCode = 148
	OpAny                    OpCode = 154
	OpAll                    OpCode = 155
	OpLogicalAnd             OpCode = 167
	OpLogicalNot             OpCode = 168
	OpSelect                 OpCode = 169
	OpIEqual                 OpCode = 170
	OpFOrdEqual              OpCode = 180
	OpFOrdLessThan           OpCode = 184
	OpFOrdGreaterThan        OpCode = 186
	OpPhi                    OpCode = 245
	OpLoopMerge              OpCode = 246
	OpSelectionMerge         OpCode = 247
	OpLabel                  OpCode = 248
	OpBranch                 OpCode = 249
	OpBranchConditional      OpCode = 250
	OpSwitch                 OpCode = 251
	OpKill                   OpCode = 252
	OpReturn                 OpCode = 253
	OpReturnValue            OpCode = 254
	OpUnreachable            OpCode = 255
	OpNoLine                 OpCode = 317
	OpModuleProcessed        OpCode = 330
	OpExecutionModeID        OpCode = 331
	OpDecorateString         OpCode = 5632
	OpMemberDecorateString   OpCode = 5633
)

var opcodeNames = map[OpCode]string{
	OpNop: "OpNop", OpUndef: "OpUndef", OpSourceContinued: "OpSourceContinued",
	OpSource: "OpSource", OpSourceExtension: "OpSourceExtension", OpName: "OpName",
	OpMemberName: "OpMemberName", OpString: "OpString", OpLine: "OpLine",
	OpExtension: "OpExtension", OpExtInstImport: "OpExtInstImport", OpExtInst: "OpExtInst",
	OpMemoryModel: "OpMemoryModel", OpEntryPoint: "OpEntryPoint",
	OpExecutionMode: "OpExecutionMode", OpCapability: "OpCapability",
	OpTypeVoid: "OpTypeVoid", OpTypeBool: "OpTypeBool", OpTypeInt: "OpTypeInt",
	OpTypeFloat: "OpTypeFloat", OpTypeVector: "OpTypeVector", OpTypeMatrix: "OpTypeMatrix",
	OpTypeImage: "OpTypeImage", OpTypeSampler: "OpTypeSampler",
	OpTypeSampledImage: "OpTypeSampledImage", OpTypeArray: "OpTypeArray",
	OpTypeRuntimeArray: "OpTypeRuntimeArray", OpTypeStruct: "OpTypeStruct",
	OpTypeOpaque: "OpTypeOpaque", OpTypePointer: "OpTypePointer",
	OpTypeFunction: "OpTypeFunction", OpConstantTrue: "OpConstantTrue",
	OpConstantFalse: "OpConstantFalse", OpConstant: "OpConstant",
	OpConstantComposite: "OpConstantComposite", OpConstantNull: "OpConstantNull",
	OpSpecConstantTrue: "OpSpecConstantTrue", OpSpecConstantFalse: "OpSpecConstantFalse",
	OpSpecConstant: "OpSpecConstant", OpSpecConstantComposite: "OpSpecConstantComposite",
	OpFunction: "OpFunction", OpFunctionParameter: "OpFunctionParameter",
	OpFunctionEnd: "OpFunctionEnd", OpFunctionCall: "OpFunctionCall",
	OpVariable: "OpVariable", OpLoad: "OpLoad", OpStore: "OpStore",
	OpCopyMemory: "OpCopyMemory", OpAccessChain: "OpAccessChain",
	OpInBoundsAccessChain: "OpInBoundsAccessChain", OpPtrAccessChain: "OpPtrAccessChain",
	OpDecorate: "OpDecorate", OpMemberDecorate: "OpMemberDecorate",
	OpDecorationGroup: "OpDecorationGroup", OpVectorShuffle: "OpVectorShuffle",
	OpCompositeConstruct: "OpCompositeConstruct", OpCompositeExtract: "OpCompositeExtract",
	OpCompositeInsert: "OpCompositeInsert", OpCopyObject: "OpCopyObject",
	OpSampledImage: "OpSampledImage", OpImageSampleImplicitLod: "OpImageSampleImplicitLod",
	OpImageRead: "OpImageRead", OpImageWrite: "OpImageWrite",
	OpSNegate: "OpSNegate", OpFNegate: "OpFNegate", OpIAdd: "OpIAdd", OpFAdd: "OpFAdd",
	OpISub: "OpISub", OpFSub: "OpFSub", OpIMul: "OpIMul", OpFMul: "OpFMul",
	OpFDiv: "OpFDiv", OpVectorTimesScalar: "OpVectorTimesScalar",
	OpMatrixTimesVector: "OpMatrixTimesVector", OpDot: "OpDot",
	OpAny: "OpAny", OpAll: "OpAll", OpLogicalAnd: "OpLogicalAnd",
	OpLogicalNot: "OpLogicalNot", OpSelect: "OpSelect", OpIEqual: "OpIEqual",
	OpFOrdEqual: "OpFOrdEqual", OpFOrdLessThan: "OpFOrdLessThan",
	OpFOrdGreaterThan: "OpFOrdGreaterThan", OpPhi: "OpPhi",
	OpLoopMerge: "OpLoopMerge", OpSelectionMerge: "OpSelectionMerge",
	OpLabel: "OpLabel", OpBranch: "OpBranch", OpBranchConditional: "OpBranchConditional",
	OpSwitch: "OpSwitch", OpKill: "OpKill", OpReturn: "OpReturn",
	OpReturnValue: "OpReturnValue", OpUnreachable: "OpUnreachable",
	OpNoLine: "OpNoLine", OpModuleProcessed: "OpModuleProcessed",
	OpExecutionModeID: "OpExecutionModeId", OpDecorateString: "OpDecorateString",
	OpMemberDecorateString: "OpMemberDecorateString",
}

// String returns the SPIR-V mnemonic, or "Op<n>" for opcodes without a table entry.
func (op OpCode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op%d", uint16(op))
}

// Capability represents a SPIR-V capability.
type Capability uint32

// Common capabilities
const (
	CapabilityMatrix  Capability = 0
	CapabilityShader  Capability = 1
	CapabilityFloat16 Capability = 9
	CapabilityFloat64 Capability = 10
	CapabilityInt64   Capability = 11
	CapabilityInt16   Capability = 22
)

// AddressingModel represents a SPIR-V addressing model.
type AddressingModel uint32

const (
	AddressingModelLogical AddressingModel = 0
)

// MemoryModel represents a SPIR-V memory model.
type MemoryModel uint32

const (
	MemoryModelSimple  MemoryModel = 0
	MemoryModelGLSL450 MemoryModel = 1
	MemoryModelVulkan  MemoryModel = 3
)

// ExecutionModel identifies the pipeline stage of an entry point.
type ExecutionModel uint32

const (
	ExecutionModelVertex                 ExecutionModel = 0
	ExecutionModelTessellationControl    ExecutionModel = 1
	ExecutionModelTessellationEvaluation ExecutionModel = 2
	ExecutionModelGeometry               ExecutionModel = 3
	ExecutionModelFragment               ExecutionModel = 4
	ExecutionModelGLCompute              ExecutionModel = 5
	ExecutionModelKernel                 ExecutionModel = 6
)

// String returns the execution model name.
func (m ExecutionModel) String() string {
	switch m {
	case ExecutionModelVertex:
		return "Vertex"
	case ExecutionModelTessellationControl:
		return "TessellationControl"
	case ExecutionModelTessellationEvaluation:
		return "TessellationEvaluation"
	case ExecutionModelGeometry:
		return "Geometry"
	case ExecutionModelFragment:
		return "Fragment"
	case ExecutionModelGLCompute:
		return "GLCompute"
	case ExecutionModelKernel:
		return "Kernel"
	default:
		return fmt.Sprintf("ExecutionModel(%d)", uint32(m))
	}
}

// ExecutionMode configures an entry point.
type ExecutionMode uint32

const (
	ExecutionModeOriginUpperLeft ExecutionMode = 7
	ExecutionModeLocalSize       ExecutionMode = 17
)

// StorageClass is the address space of a pointer or variable.
type StorageClass uint32

const (
	StorageClassUniformConstant StorageClass = 0
	StorageClassInput           StorageClass = 1
	StorageClassUniform         StorageClass = 2
	StorageClassOutput          StorageClass = 3
	StorageClassWorkgroup       StorageClass = 4
	StorageClassCrossWorkgroup  StorageClass = 5
	StorageClassPrivate         StorageClass = 6
	StorageClassFunction        StorageClass = 7
	StorageClassGeneric         StorageClass = 8
	StorageClassPushConstant    StorageClass = 9
	StorageClassAtomicCounter   StorageClass = 10
	StorageClassImage           StorageClass = 11
	StorageClassStorageBuffer   StorageClass = 12
)

var storageClassNames = map[StorageClass]string{
	StorageClassUniformConstant: "UniformConstant", StorageClassInput: "Input",
	StorageClassUniform: "Uniform", StorageClassOutput: "Output",
	StorageClassWorkgroup: "Workgroup", StorageClassCrossWorkgroup: "CrossWorkgroup",
	StorageClassPrivate: "Private", StorageClassFunction: "Function",
	StorageClassGeneric: "Generic", StorageClassPushConstant: "PushConstant",
	StorageClassAtomicCounter: "AtomicCounter", StorageClassImage: "Image",
	StorageClassStorageBuffer: "StorageBuffer",
}

// String returns the storage class name.
func (s StorageClass) String() string {
	if name, ok := storageClassNames[s]; ok {
		return name
	}
	return fmt.Sprintf("StorageClass(%d)", uint32(s))
}

// SelectionControl is the OpSelectionMerge control mask.
type SelectionControl uint32

const (
	SelectionControlNone SelectionControl = 0
)

// FunctionControl is the OpFunction control mask.
type FunctionControl uint32

const (
	FunctionControlNone FunctionControl = 0
)

// Decoration represents a SPIR-V decoration.
type Decoration uint32

// Common decorations
const (
	DecorationRelaxedPrecision Decoration = 0
	DecorationSpecID           Decoration = 1
	DecorationBlock            Decoration = 2
	DecorationBufferBlock      Decoration = 3
	DecorationRowMajor         Decoration = 4
	DecorationColMajor         Decoration = 5
	DecorationArrayStride      Decoration = 6
	DecorationMatrixStride     Decoration = 7
	DecorationBuiltIn          Decoration = 11
	DecorationNoPerspective    Decoration = 13
	DecorationFlat             Decoration = 14
	DecorationPatch            Decoration = 15
	DecorationCentroid         Decoration = 16
	DecorationSample           Decoration = 17
	DecorationNonWritable      Decoration = 24
	DecorationNonReadable      Decoration = 25
	DecorationLocation         Decoration = 30
	DecorationComponent        Decoration = 31
	DecorationIndex            Decoration = 32
	DecorationBinding          Decoration = 33
	DecorationDescriptorSet    Decoration = 34
	DecorationOffset           Decoration = 35
)

var decorationNames = map[Decoration]string{
	DecorationRelaxedPrecision: "RelaxedPrecision", DecorationSpecID: "SpecId",
	DecorationBlock: "Block", DecorationBufferBlock: "BufferBlock",
	DecorationRowMajor: "RowMajor", DecorationColMajor: "ColMajor",
	DecorationArrayStride: "ArrayStride", DecorationMatrixStride: "MatrixStride",
	DecorationBuiltIn: "BuiltIn", DecorationNoPerspective: "NoPerspective",
	DecorationFlat: "Flat", DecorationPatch: "Patch", DecorationCentroid: "Centroid",
	DecorationSample: "Sample", DecorationNonWritable: "NonWritable",
	DecorationNonReadable: "NonReadable", DecorationLocation: "Location",
	DecorationComponent: "Component", DecorationIndex: "Index",
	DecorationBinding: "Binding", DecorationDescriptorSet: "DescriptorSet",
	DecorationOffset: "Offset",
}

// String returns the decoration name.
func (d Decoration) String() string {
	if name, ok := decorationNames[d]; ok {
		return name
	}
	return fmt.Sprintf("%d", uint32(d))
}

// BuiltIn identifies a built-in variable.
type BuiltIn uint32

const (
	BuiltInPosition           BuiltIn = 0
	BuiltInPointSize          BuiltIn = 1
	BuiltInClipDistance       BuiltIn = 3
	BuiltInCullDistance       BuiltIn = 4
	BuiltInFragCoord          BuiltIn = 15
	BuiltInFrontFacing        BuiltIn = 17
	BuiltInFragDepth          BuiltIn = 22
	BuiltInLocalInvocationID  BuiltIn = 27
	BuiltInGlobalInvocationID BuiltIn = 28
	BuiltInVertexIndex        BuiltIn = 42
	BuiltInInstanceIndex      BuiltIn = 43
)

var builtInNames = map[BuiltIn]string{
	BuiltInPosition: "Position", BuiltInPointSize: "PointSize",
	BuiltInClipDistance: "ClipDistance", BuiltInCullDistance: "CullDistance",
	BuiltInFragCoord: "FragCoord", BuiltInFrontFacing: "FrontFacing",
	BuiltInFragDepth: "FragDepth", BuiltInLocalInvocationID: "LocalInvocationId",
	BuiltInGlobalInvocationID: "GlobalInvocationId",
	BuiltInVertexIndex: "VertexIndex", BuiltInInstanceIndex: "InstanceIndex",
}

// String returns the built-in name.
func (b BuiltIn) String() string {
	if name, ok := builtInNames[b]; ok {
		return name
	}
	return fmt.Sprintf("%d", uint32(b))
}

// Dim is the dimensionality of an image type.
type Dim uint32

const (
	Dim1D          Dim = 0
	Dim2D          Dim = 1
	Dim3D          Dim = 2
	DimCube        Dim = 3
	DimRect        Dim = 4
	DimBuffer      Dim = 5
	DimSubpassData Dim = 6
)

// ImageFormat is the texel format operand of OpTypeImage.
type ImageFormat uint32

const (
	ImageFormatUnknown     ImageFormat = 0
	ImageFormatRgba32f     ImageFormat = 1
	ImageFormatRgba16f     ImageFormat = 2
	ImageFormatR32f        ImageFormat = 3
	ImageFormatRgba8       ImageFormat = 4
	ImageFormatRgba8Snorm  ImageFormat = 5
	ImageFormatRg32f       ImageFormat = 6
	ImageFormatRg16f       ImageFormat = 7
	ImageFormatR16f        ImageFormat = 9
	ImageFormatRg8         ImageFormat = 13
	ImageFormatR8          ImageFormat = 15
	ImageFormatRg8Snorm    ImageFormat = 18
	ImageFormatR8Snorm     ImageFormat = 20
	ImageFormatRgba32i     ImageFormat = 21
	ImageFormatR32i        ImageFormat = 24
	ImageFormatRgba32ui    ImageFormat = 30
	ImageFormatR32ui       ImageFormat = 33
)
