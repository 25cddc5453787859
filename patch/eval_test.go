package patch

import (
	"math"
	"slices"
	"testing"

	"github.com/gogpu/spvkit/spirv"
)

// machine interprets the straight-line and branching subset of SPIR-V that
// the test fixtures and the passes emit. Values are flattened to float64
// slices; booleans are 0 or 1 and float arithmetic is rounded to float32.
type machine struct {
	t         *testing.T
	m         *spirv.Module
	insts     []spirv.Inst
	types     map[uint32]evalType
	values    map[uint32][]float64
	memory    map[uint32][]float64
	varTypes  map[uint32]uint32 // variable -> pointee type
	pointers  map[uint32]evalPointer
	functions map[uint32]int
}

type evalType struct {
	opcode   spirv.OpCode
	operands []uint32
}

type evalPointer struct {
	variable uint32
	pointee  uint32
	offset   int
}

func newMachine(t *testing.T, m *spirv.Module) *machine {
	t.Helper()

	insts, err := m.Instructions()
	if err != nil {
		t.Fatalf("Instructions: %v", err)
	}
	vm := &machine{
		t:         t,
		m:         m,
		insts:     insts,
		types:     make(map[uint32]evalType),
		values:    make(map[uint32][]float64),
		memory:    make(map[uint32][]float64),
		varTypes:  make(map[uint32]uint32),
		pointers:  make(map[uint32]evalPointer),
		functions: make(map[uint32]int),
	}
	for i, inst := range insts {
		ops := m.Operands(inst)
		switch inst.Opcode {
		case spirv.OpTypeVoid, spirv.OpTypeBool, spirv.OpTypeInt, spirv.OpTypeFloat,
			spirv.OpTypeVector, spirv.OpTypeMatrix, spirv.OpTypeArray, spirv.OpTypeStruct,
			spirv.OpTypePointer, spirv.OpTypeFunction:
			vm.types[ops[0]] = evalType{opcode: inst.Opcode, operands: slices.Clone(ops[1:])}
		case spirv.OpConstant:
			vm.values[ops[1]] = []float64{vm.scalar(ops[0], ops[2])}
		case spirv.OpConstantTrue:
			vm.values[ops[1]] = []float64{1}
		case spirv.OpConstantFalse:
			vm.values[ops[1]] = []float64{0}
		case spirv.OpConstantComposite:
			vm.values[ops[1]] = vm.concat(ops[2:])
		case spirv.OpVariable:
			if spirv.StorageClass(ops[2]) != spirv.StorageClassFunction {
				vm.declare(ops[0], ops[1])
			}
		case spirv.OpFunction:
			vm.functions[ops[1]] = i
		}
	}
	return vm
}

func (vm *machine) declare(pointerType, id uint32) {
	pointee := vm.types[pointerType].operands[1]
	vm.varTypes[id] = pointee
	vm.memory[id] = make([]float64, vm.size(pointee))
}

func (vm *machine) scalar(typeID, bits uint32) float64 {
	if vm.types[typeID].opcode == spirv.OpTypeFloat {
		return float64(math.Float32frombits(bits))
	}
	return float64(int32(bits))
}

func (vm *machine) size(typeID uint32) int {
	t, ok := vm.types[typeID]
	if !ok {
		vm.t.Fatalf("unknown type %%%d", typeID)
	}
	switch t.opcode {
	case spirv.OpTypeVector, spirv.OpTypeMatrix:
		return int(t.operands[1]) * vm.size(t.operands[0])
	case spirv.OpTypeArray:
		return int(vm.values[t.operands[1]][0]) * vm.size(t.operands[0])
	case spirv.OpTypeStruct:
		n := 0
		for _, member := range t.operands {
			n += vm.size(member)
		}
		return n
	default:
		return 1
	}
}

func (vm *machine) concat(ids []uint32) []float64 {
	var out []float64
	for _, id := range ids {
		v, ok := vm.values[id]
		if !ok {
			vm.t.Fatalf("value %%%d is undefined", id)
		}
		out = append(out, v...)
	}
	return out
}

func (vm *machine) pointer(id uint32) evalPointer {
	if p, ok := vm.pointers[id]; ok {
		return p
	}
	if pointee, ok := vm.varTypes[id]; ok {
		return evalPointer{variable: id, pointee: pointee}
	}
	vm.t.Fatalf("%%%d is not a pointer", id)
	return evalPointer{}
}

func (vm *machine) chain(base evalPointer, indices []uint32) evalPointer {
	p := base
	for _, index := range indices {
		i := int(vm.values[index][0])
		t := vm.types[p.pointee]
		switch t.opcode {
		case spirv.OpTypeStruct:
			for _, member := range t.operands[:i] {
				p.offset += vm.size(member)
			}
			p.pointee = t.operands[i]
		case spirv.OpTypeVector, spirv.OpTypeMatrix, spirv.OpTypeArray:
			p.offset += i * vm.size(t.operands[0])
			p.pointee = t.operands[0]
		default:
			vm.t.Fatalf("cannot index %s", t.opcode)
		}
	}
	return p
}

// set writes the flattened contents of a variable.
func (vm *machine) set(variable uint32, values ...float64) {
	copy(vm.memory[variable], values)
}

// get reads the flattened contents of a variable.
func (vm *machine) get(variable uint32) []float64 {
	return vm.memory[variable]
}

func f32(x float64) float64 {
	return float64(float32(x))
}

func (vm *machine) elementwise(a, b uint32, fn func(x, y float64) float64) []float64 {
	x, y := vm.values[a], vm.values[b]
	out := make([]float64, len(x))
	for i := range x {
		out[i] = fn(x[i], y[i])
	}
	return out
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// run executes function until it returns.
func (vm *machine) run(function uint32) {
	vm.t.Helper()

	start, ok := vm.functions[function]
	if !ok {
		vm.t.Fatalf("function %%%d not found", function)
	}
	labels := make(map[uint32]int)
	for i := start; i < len(vm.insts) && vm.insts[i].Opcode != spirv.OpFunctionEnd; i++ {
		if vm.insts[i].Opcode == spirv.OpLabel {
			labels[vm.m.Operands(vm.insts[i])[0]] = i
		}
	}

	for pc, steps := start+1, 0; steps < 10000; steps++ {
		inst := vm.insts[pc]
		ops := vm.m.Operands(inst)
		pc++

		switch inst.Opcode {
		case spirv.OpLabel, spirv.OpSelectionMerge, spirv.OpLoopMerge, spirv.OpName, spirv.OpNop:
		case spirv.OpBranch:
			pc = labels[ops[0]]
		case spirv.OpBranchConditional:
			if vm.values[ops[0]][0] != 0 {
				pc = labels[ops[1]]
			} else {
				pc = labels[ops[2]]
			}
		case spirv.OpReturn:
			return
		case spirv.OpFunctionEnd:
			vm.t.Fatal("reached OpFunctionEnd without OpReturn")
		case spirv.OpVariable:
			vm.declare(ops[0], ops[1])
		case spirv.OpAccessChain, spirv.OpInBoundsAccessChain:
			vm.pointers[ops[1]] = vm.chain(vm.pointer(ops[2]), ops[3:])
		case spirv.OpLoad:
			p := vm.pointer(ops[2])
			n := vm.size(p.pointee)
			vm.values[ops[1]] = slices.Clone(vm.memory[p.variable][p.offset : p.offset+n])
		case spirv.OpStore:
			p := vm.pointer(ops[0])
			copy(vm.memory[p.variable][p.offset:], vm.values[ops[1]])
		case spirv.OpFAdd:
			vm.values[ops[1]] = vm.elementwise(ops[2], ops[3], func(x, y float64) float64 { return f32(x + y) })
		case spirv.OpFSub:
			vm.values[ops[1]] = vm.elementwise(ops[2], ops[3], func(x, y float64) float64 { return f32(x - y) })
		case spirv.OpFMul:
			vm.values[ops[1]] = vm.elementwise(ops[2], ops[3], func(x, y float64) float64 { return f32(x * y) })
		case spirv.OpFOrdEqual:
			vm.values[ops[1]] = vm.elementwise(ops[2], ops[3], func(x, y float64) float64 { return truth(x == y) })
		case spirv.OpFOrdLessThan:
			vm.values[ops[1]] = vm.elementwise(ops[2], ops[3], func(x, y float64) float64 { return truth(x < y) })
		case spirv.OpFOrdGreaterThan:
			vm.values[ops[1]] = vm.elementwise(ops[2], ops[3], func(x, y float64) float64 { return truth(x > y) })
		case spirv.OpFNegate:
			v := slices.Clone(vm.values[ops[2]])
			for i := range v {
				v[i] = -v[i]
			}
			vm.values[ops[1]] = v
		case spirv.OpAll:
			all := true
			for _, x := range vm.values[ops[2]] {
				all = all && x != 0
			}
			vm.values[ops[1]] = []float64{truth(all)}
		case spirv.OpCompositeConstruct:
			vm.values[ops[1]] = vm.concat(ops[2:])
		case spirv.OpCompositeExtract:
			vm.values[ops[1]] = []float64{vm.values[ops[2]][ops[3]]}
		case spirv.OpSelect:
			cond, accept, reject := vm.values[ops[2]], vm.values[ops[3]], vm.values[ops[4]]
			out := make([]float64, len(accept))
			for i := range out {
				c := cond[0]
				if len(cond) == len(out) {
					c = cond[i]
				}
				if c != 0 {
					out[i] = accept[i]
				} else {
					out[i] = reject[i]
				}
			}
			vm.values[ops[1]] = out
		default:
			vm.t.Fatalf("machine does not support %s at word %d", inst.Opcode, inst.Offset)
		}
	}
	vm.t.Fatal("step limit exceeded")
}

func approxEqual(a, b []float64, tolerance float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tolerance {
			return false
		}
	}
	return true
}
