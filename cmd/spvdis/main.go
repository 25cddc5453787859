// spvdis - SPIR-V disassembler
// Generates .spvasm-style text for a module, after an optional patch pass
// so that a pass's edits can be inspected.
//
// Usage:
//
//	spvdis [-pass kind] [-angle deg] <file.spv>
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gogpu/spvkit/patch"
	"github.com/gogpu/spvkit/spirv"
)

var capabilities = map[uint32]string{
	0: "Matrix", 1: "Shader", 2: "Geometry", 3: "Tessellation",
	4: "Addresses", 5: "Linkage", 6: "Kernel", 7: "Vector16",
	8: "Float16Buffer", 9: "Float16", 10: "Float64", 11: "Int64",
	12: "Int64Atomics", 13: "ImageBasic", 14: "ImageReadWrite", 15: "ImageMipmap",
	17: "Pipes", 18: "Groups", 19: "DeviceEnqueue", 20: "LiteralSampler",
	21: "AtomicStorage", 22: "Int16", 23: "TessellationPointSize",
	24: "GeometryPointSize", 25: "ImageGatherExtended", 26: "StorageImageMultisample",
	27: "UniformBufferArrayDynamicIndexing", 28: "SampledImageArrayDynamicIndexing",
	29: "StorageBufferArrayDynamicIndexing", 30: "StorageImageArrayDynamicIndexing",
	31: "ClipDistance", 32: "CullDistance", 33: "ImageCubeArray",
	34: "SampleRateShading", 35: "ImageRect", 36: "SampledRect",
	37: "GenericPointer", 38: "Int8", 39: "InputAttachment",
	40: "SparseResidency", 41: "MinLod", 42: "Sampled1D", 43: "Image1D",
	44: "SampledCubeArray", 45: "SampledBuffer", 46: "ImageBuffer",
	47: "ImageMSArray", 48: "StorageImageExtendedFormats",
	49: "ImageQuery", 50: "DerivativeControl", 51: "InterpolationFunction",
	52: "TransformFeedback", 53: "GeometryStreams", 54: "StorageImageReadWithoutFormat",
	55: "StorageImageWriteWithoutFormat", 56: "MultiViewport",
	57: "SubgroupDispatch", 58: "NamedBarrier", 59: "PipeStorage",
	60: "GroupNonUniform", 61: "GroupNonUniformVote", 62: "GroupNonUniformArithmetic",
	63: "GroupNonUniformBallot", 64: "GroupNonUniformShuffle",
	65: "GroupNonUniformShuffleRelative", 66: "GroupNonUniformClustered",
	67: "GroupNonUniformQuad", 4423: "SubgroupBallotKHR", 4427: "DrawParameters",
	4437: "StorageBuffer16BitAccess", 4438: "UniformAndStorageBuffer16BitAccess",
	4439: "StoragePushConstant16", 4440: "StorageInputOutput16",
	4441: "DeviceGroup", 4442: "MultiView", 4445: "VariablePointersStorageBuffer",
	4446: "VariablePointers", 5009: "StencilExportEXT", 5010: "SampleMaskPostDepthCoverage",
	5013: "ShaderNonUniform", 5015: "RuntimeDescriptorArray",
	5016: "InputAttachmentArrayDynamicIndexing", 5017: "UniformTexelBufferArrayDynamicIndexing",
	5018: "StorageTexelBufferArrayDynamicIndexing", 5019: "UniformBufferArrayNonUniformIndexing",
}

var executionModes = map[uint32]string{
	0: "Invocations", 1: "SpacingEqual", 2: "SpacingFractionalEven",
	3: "SpacingFractionalOdd", 4: "VertexOrderCw", 5: "VertexOrderCcw",
	6: "PixelCenterInteger", 7: "OriginUpperLeft", 8: "OriginLowerLeft",
	9: "EarlyFragmentTests", 10: "PointMode", 11: "Xfb", 12: "DepthReplacing",
	14: "DepthGreater", 15: "DepthLess", 16: "DepthUnchanged",
	17: "LocalSize", 18: "LocalSizeHint", 19: "InputPoints", 20: "InputLines",
	21: "InputLinesAdjacency", 22: "Triangles", 23: "InputTrianglesAdjacency",
	24: "Quads", 25: "Isolines", 26: "OutputVertices", 27: "OutputPoints",
	28: "OutputLineStrip", 29: "OutputTriangleStrip", 30: "VecTypeHint",
	31: "ContractionOff", 33: "Initializer", 34: "Finalizer",
	35: "SubgroupSize", 36: "SubgroupsPerWorkgroup",
}

var dims = map[uint32]string{
	0: "1D", 1: "2D", 2: "3D", 3: "Cube", 4: "Rect", 5: "Buffer", 6: "SubpassData",
}

var (
	pass  = flag.String("pass", "", "patch pass to apply before disassembling")
	angle = flag.Float64("angle", 90, "rotation angle for clip-rotation")
)

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: spvdis [-pass kind] [-angle deg] <file.spv>")
		return
	}
	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	m, err := spirv.Parse(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *pass != "" {
		kind, err := patch.ParseKind(*pass)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		p, err := patch.New(kind, patch.Config{AngleDegrees: float32(*angle)})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := p.Patch(m); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", kind, err)
			os.Exit(1)
		}
	}

	if err := disassemble(os.Stdout, m); err != nil {
		fmt.Fprintf(os.Stderr, "; ERROR: %v\n", err)
		os.Exit(1)
	}
}

func disassemble(w io.Writer, m *spirv.Module) error {
	fmt.Fprintf(w, "; SPIR-V\n")
	fmt.Fprintf(w, "; Version: %s\n", m.Version())
	fmt.Fprintf(w, "; Generator: 0x%08X\n", m.Generator())
	fmt.Fprintf(w, "; Bound: %d\n", m.Bound())
	fmt.Fprintf(w, "; Schema: %d\n", m.Schema())
	fmt.Fprintln(w)

	d := &printer{w: w, m: m}
	return m.Walk(func(inst spirv.Inst) error {
		return d.instruction(inst)
	})
}

type printer struct {
	w io.Writer
	m *spirv.Module
}

func id(n uint32) string {
	return fmt.Sprintf("%%_%d", n)
}

func lookup(m map[uint32]string, v uint32) string {
	if s, ok := m[v]; ok {
		return s
	}
	return fmt.Sprintf("%d", v)
}

func ids(ops []uint32) string {
	var sb strings.Builder
	for _, op := range ops {
		sb.WriteString(" ")
		sb.WriteString(id(op))
	}
	return sb.String()
}

func literals(ops []uint32) string {
	var sb strings.Builder
	for _, op := range ops {
		fmt.Fprintf(&sb, " %d", op)
	}
	return sb.String()
}

func (p *printer) statement(format string, args ...any) {
	fmt.Fprintf(p.w, "               "+format+"\n", args...)
}

func (p *printer) result(result uint32, format string, args ...any) {
	fmt.Fprintf(p.w, "%14s = "+format+"\n", append([]any{id(result)}, args...)...)
}

// expect reports a malformed instruction instead of indexing past its end.
func expect(inst spirv.Inst, ops []uint32, n int) error {
	if len(ops) < n {
		return spirv.NewErrorAt(spirv.ErrFormat, inst.Offset, "%s has %d operands, want at least %d",
			inst.Opcode, len(ops), n)
	}
	return nil
}

//nolint:gocognit,gocyclo,cyclop,funlen // dev tool: switch cases for SPIR-V opcodes
func (p *printer) instruction(inst spirv.Inst) error {
	name := inst.Opcode.String()
	ops := p.m.Operands(inst)

	switch inst.Opcode {
	case spirv.OpCapability:
		if err := expect(inst, ops, 1); err != nil {
			return err
		}
		p.statement("%s %s", name, lookup(capabilities, ops[0]))

	case spirv.OpExtInstImport:
		if err := expect(inst, ops, 2); err != nil {
			return err
		}
		str, _, err := p.m.LiteralString(inst, 2)
		if err != nil {
			return err
		}
		p.result(ops[0], "%s \"%s\"", name, str)

	case spirv.OpMemoryModel:
		if err := expect(inst, ops, 2); err != nil {
			return err
		}
		addrModels := map[uint32]string{0: "Logical", 1: "Physical32", 2: "Physical64", 5348: "PhysicalStorageBuffer64"}
		memModels := map[uint32]string{0: "Simple", 1: "GLSL450", 2: "OpenCL", 3: "Vulkan"}
		p.statement("%s %s %s", name, lookup(addrModels, ops[0]), lookup(memModels, ops[1]))

	case spirv.OpEntryPoint:
		if err := expect(inst, ops, 3); err != nil {
			return err
		}
		str, strWords, err := p.m.LiteralString(inst, 3)
		if err != nil {
			return err
		}
		p.statement("%s %s %s \"%s\"%s", name, spirv.ExecutionModel(ops[0]), id(ops[1]), str, ids(ops[2+strWords:]))

	case spirv.OpExecutionMode:
		if err := expect(inst, ops, 2); err != nil {
			return err
		}
		p.statement("%s %s %s%s", name, id(ops[0]), lookup(executionModes, ops[1]), literals(ops[2:]))

	case spirv.OpName:
		if err := expect(inst, ops, 2); err != nil {
			return err
		}
		str, _, err := p.m.LiteralString(inst, 2)
		if err != nil {
			return err
		}
		p.statement("%s %s \"%s\"", name, id(ops[0]), str)

	case spirv.OpMemberName:
		if err := expect(inst, ops, 3); err != nil {
			return err
		}
		str, _, err := p.m.LiteralString(inst, 3)
		if err != nil {
			return err
		}
		p.statement("%s %s %d \"%s\"", name, id(ops[0]), ops[1], str)

	case spirv.OpDecorate:
		if err := expect(inst, ops, 2); err != nil {
			return err
		}
		dec := spirv.Decoration(ops[1])
		if dec == spirv.DecorationBuiltIn && len(ops) > 2 {
			p.statement("%s %s %s %s", name, id(ops[0]), dec, spirv.BuiltIn(ops[2]))
		} else {
			p.statement("%s %s %s%s", name, id(ops[0]), dec, literals(ops[2:]))
		}

	case spirv.OpMemberDecorate:
		if err := expect(inst, ops, 3); err != nil {
			return err
		}
		dec := spirv.Decoration(ops[2])
		if dec == spirv.DecorationBuiltIn && len(ops) > 3 {
			p.statement("%s %s %d %s %s", name, id(ops[0]), ops[1], dec, spirv.BuiltIn(ops[3]))
		} else {
			p.statement("%s %s %d %s%s", name, id(ops[0]), ops[1], dec, literals(ops[3:]))
		}

	case spirv.OpTypeVoid, spirv.OpTypeBool, spirv.OpTypeSampler, spirv.OpLabel:
		if err := expect(inst, ops, 1); err != nil {
			return err
		}
		p.result(ops[0], "%s", name)

	case spirv.OpTypeInt:
		if err := expect(inst, ops, 3); err != nil {
			return err
		}
		p.result(ops[0], "%s %d %d", name, ops[1], ops[2])

	case spirv.OpTypeFloat:
		if err := expect(inst, ops, 2); err != nil {
			return err
		}
		p.result(ops[0], "%s %d", name, ops[1])

	case spirv.OpTypeVector, spirv.OpTypeMatrix:
		if err := expect(inst, ops, 3); err != nil {
			return err
		}
		p.result(ops[0], "%s %s %d", name, id(ops[1]), ops[2])

	case spirv.OpTypeImage:
		if err := expect(inst, ops, 8); err != nil {
			return err
		}
		// Access qualifier is only present when Sampled != 1.
		access := ""
		if ops[6] != 1 && len(ops) > 8 {
			access = fmt.Sprintf(" %d", ops[8])
		}
		p.result(ops[0], "%s %s %s %d %d %d %d %d%s", name, id(ops[1]), lookup(dims, ops[2]),
			ops[3], ops[4], ops[5], ops[6], ops[7], access)

	case spirv.OpTypeSampledImage, spirv.OpTypeRuntimeArray:
		if err := expect(inst, ops, 2); err != nil {
			return err
		}
		p.result(ops[0], "%s %s", name, id(ops[1]))

	case spirv.OpTypeArray:
		if err := expect(inst, ops, 3); err != nil {
			return err
		}
		p.result(ops[0], "%s %s %s", name, id(ops[1]), id(ops[2]))

	case spirv.OpTypeStruct, spirv.OpTypeFunction:
		if err := expect(inst, ops, 1); err != nil {
			return err
		}
		p.result(ops[0], "%s%s", name, ids(ops[1:]))

	case spirv.OpTypePointer:
		if err := expect(inst, ops, 3); err != nil {
			return err
		}
		p.result(ops[0], "%s %s %s", name, spirv.StorageClass(ops[1]), id(ops[2]))

	case spirv.OpConstant:
		if err := expect(inst, ops, 3); err != nil {
			return err
		}
		p.result(ops[1], "%s %s%s", name, id(ops[0]), literals(ops[2:]))

	case spirv.OpFunction:
		if err := expect(inst, ops, 4); err != nil {
			return err
		}
		p.result(ops[1], "%s %s None %s", name, id(ops[0]), id(ops[3]))

	case spirv.OpVariable:
		if err := expect(inst, ops, 3); err != nil {
			return err
		}
		p.result(ops[1], "%s %s %s%s", name, id(ops[0]), spirv.StorageClass(ops[2]), ids(ops[3:]))

	case spirv.OpCompositeExtract:
		if err := expect(inst, ops, 3); err != nil {
			return err
		}
		p.result(ops[1], "%s %s %s%s", name, id(ops[0]), id(ops[2]), literals(ops[3:]))

	case spirv.OpVectorShuffle:
		if err := expect(inst, ops, 4); err != nil {
			return err
		}
		p.result(ops[1], "%s %s %s %s%s", name, id(ops[0]), id(ops[2]), id(ops[3]), literals(ops[4:]))

	case spirv.OpStore, spirv.OpFunctionEnd, spirv.OpBranch, spirv.OpBranchConditional,
		spirv.OpSelectionMerge, spirv.OpLoopMerge, spirv.OpReturn, spirv.OpReturnValue,
		spirv.OpKill, spirv.OpUnreachable:
		p.statement("%s%s", name, ids(ops))

	default:
		if typedResult(inst.Opcode) && len(ops) >= 2 {
			// type result operands...
			p.result(ops[1], "%s %s%s", name, id(ops[0]), ids(ops[2:]))
		} else {
			p.statement("%s%s", name, ids(ops))
		}
	}
	return nil
}

// typedResult reports whether op starts with a result type and result id.
func typedResult(op spirv.OpCode) bool {
	switch op {
	case spirv.OpLoad, spirv.OpAccessChain, spirv.OpInBoundsAccessChain, spirv.OpCompositeConstruct,
		spirv.OpConstantComposite, spirv.OpConstantTrue, spirv.OpConstantFalse, spirv.OpConstantNull,
		spirv.OpUndef, spirv.OpFunctionParameter, spirv.OpFunctionCall, spirv.OpExtInst,
		spirv.OpSampledImage, spirv.OpImageSampleImplicitLod, spirv.OpImageRead, spirv.OpPhi,
		spirv.OpCompositeInsert, spirv.OpCopyObject:
		return true
	}
	// Arithmetic, conversion and logic opcodes.
	return op >= 109 && op <= 200
}
