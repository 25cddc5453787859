package patch

import (
	"bytes"
	"testing"

	"github.com/gogpu/spvkit/spirv"
)

func TestColorClamp(t *testing.T) {
	almost := f32(0.99)
	tests := []struct {
		name  string
		input []float64
		want  []float64
	}{
		{"white", []float64{1, 1, 1, 1}, []float64{almost, almost, almost, almost}},
		{"grey", []float64{0.5, 0.5, 0.5, 1}, []float64{0.5, 0.5, 0.5, 1}},
		{"white, translucent", []float64{1, 1, 1, 0.5}, []float64{1, 1, 1, 0.5}},
		{"black", []float64{0, 0, 0, 0}, []float64{0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFragment(t, fragmentOptions{outputs: 1, inputs: []uint32{0}})
			before := fx.module.Len()

			if err := (ColorClamp{}).Patch(fx.module); err != nil {
				t.Fatalf("Patch: %v", err)
			}
			checkModule(t, fx.module)
			if fx.module.Len() <= before {
				t.Error("module did not grow")
			}

			vm := newMachine(t, fx.module)
			vm.set(fx.inputs[0], tt.input...)
			vm.run(fx.main)
			if got := vm.get(fx.outputs[0]); !approxEqual(got, tt.want, 0) {
				t.Errorf("output = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestColorClamp_LiteralWhite(t *testing.T) {
	fx := newFragment(t, fragmentOptions{literal: true, outputs: 1})

	r, err := NewResolver(spirv.NewEditor(fx.module))
	if err != nil {
		t.Fatal(err)
	}
	float, _ := r.Lookup(FloatType(32))
	vec4, _ := r.Lookup(VectorType(float, 4))
	one, _ := r.Lookup(ConstantF32(float, 1))
	white, ok := r.Lookup(ConstantComposite(vec4, one, one, one, one))
	if !ok {
		t.Fatal("fixture has no vec4(1) constant")
	}

	if err := (ColorClamp{}).Patch(fx.module); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	checkModule(t, fx.module)

	// The existing vec4(1) is reused, not declared again.
	var composites int
	for _, inst := range find(t, fx.module, spirv.OpConstantComposite) {
		if fx.module.Operands(inst)[1] == white {
			composites++
		}
	}
	if composites != 1 {
		t.Errorf("vec4(1) declared %d times", composites)
	}
	equal := find(t, fx.module, spirv.OpFOrdEqual)
	if len(equal) != 1 || fx.module.Operands(equal[0])[3] != white {
		t.Errorf("OpFOrdEqual does not compare against the existing vec4(1)")
	}

	vm := newMachine(t, fx.module)
	vm.run(fx.main)
	almost := f32(0.99)
	if got := vm.get(fx.outputs[0]); !approxEqual(got, []float64{almost, almost, almost, almost}, 0) {
		t.Errorf("output = %v", got)
	}
}

func TestColorClamp_InsertedSequence(t *testing.T) {
	fx := newFragment(t, fragmentOptions{outputs: 1, inputs: []uint32{0}})
	if err := (ColorClamp{}).Patch(fx.module); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	body, err := fx.module.FunctionBody(fx.main)
	if err != nil {
		t.Fatal(err)
	}
	var ops []spirv.OpCode
	for _, inst := range body {
		ops = append(ops, inst.Opcode)
	}
	want := []spirv.OpCode{
		spirv.OpFunction, spirv.OpLabel, spirv.OpLoad,
		spirv.OpFOrdEqual, spirv.OpAll, spirv.OpCompositeConstruct, spirv.OpSelect,
		spirv.OpStore, spirv.OpReturn, spirv.OpFunctionEnd,
	}
	if len(ops) != len(want) {
		t.Fatalf("body = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("body = %v, want %v", ops, want)
		}
	}

	sel := body[6]
	store := body[7]
	if fx.module.Operands(store)[1] != fx.module.Operands(sel)[1] {
		t.Error("store does not write the select result")
	}
}

func TestColorClamp_Preconditions(t *testing.T) {
	tests := []struct {
		name string
		opts fragmentOptions
	}{
		{"no output", fragmentOptions{inputs: []uint32{0}}},
		{"two outputs", fragmentOptions{outputs: 2, inputs: []uint32{0}}},
		{"no store", fragmentOptions{outputs: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFragment(t, tt.opts)
			original := fx.module.Bytes()

			err := (ColorClamp{}).Patch(fx.module)
			if !spirv.IsPrecondition(err) {
				t.Fatalf("Patch error = %v, want precondition", err)
			}
			if !bytes.Equal(fx.module.Bytes(), original) {
				t.Error("failed patch modified the module")
			}
		})
	}
}

func TestColorClamp_VertexModule(t *testing.T) {
	fx := newVertex(t, vertexOptions{locations: []uint32{0}})
	original := fx.module.Bytes()
	if err := (ColorClamp{}).Patch(fx.module); !spirv.IsPrecondition(err) {
		t.Fatalf("Patch error = %v, want precondition", err)
	}
	if !bytes.Equal(fx.module.Bytes(), original) {
		t.Error("failed patch modified the module")
	}
}
