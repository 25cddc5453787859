package patch

import (
	"testing"

	"github.com/gogpu/spvkit/spirv"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if got, err := ParseKind("Color-Clamp"); err != nil || got != KindColorClamp {
		t.Errorf("ParseKind is case sensitive: %v, %v", got, err)
	}
	if _, err := ParseKind("sharpen"); err == nil {
		t.Error("ParseKind accepted an unknown name")
	}
	if s := Kind(42).String(); s != "Kind(42)" {
		t.Errorf("Kind(42).String() = %q", s)
	}
}

func TestNew(t *testing.T) {
	consumer := newFragment(t, fragmentOptions{outputs: 1, inputs: []uint32{0}}).module

	tests := []struct {
		kind    Kind
		cfg     Config
		want    Pass
		wantErr bool
	}{
		{KindColorClamp, Config{}, ColorClamp{}, false},
		{KindUnusedLocations, Config{Consumer: consumer}, UnusedLocationStripper{Consumer: consumer}, false},
		{KindUnusedLocations, Config{}, nil, true},
		{KindClipSpaceRotation, Config{AngleDegrees: 90}, ClipSpaceRotator{AngleDegrees: 90}, false},
		{KindInvertOrdinate, Config{}, OrdinateInverter{}, false},
		{Kind(9), Config{}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got, err := New(tt.kind, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New error = %v, wantErr %t", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("New = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// Passes compose: each one leaves a module the next can parse and patch.
func TestPassChain(t *testing.T) {
	vertex := newVertex(t, vertexOptions{locations: []uint32{0, 1}, block: true, branches: true})
	fragment := newFragment(t, fragmentOptions{outputs: 1, inputs: []uint32{1}})

	chain := []Pass{
		UnusedLocationStripper{Consumer: fragment.module},
		ClipSpaceRotator{AngleDegrees: 180},
		OrdinateInverter{},
	}
	for _, p := range chain {
		if err := p.Patch(vertex.module); err != nil {
			t.Fatalf("%T: %v", p, err)
		}
		checkModule(t, vertex.module)
	}
	if err := (ColorClamp{}).Patch(fragment.module); err != nil {
		t.Fatal(err)
	}
	checkModule(t, fragment.module)

	vm := newMachine(t, vertex.module)
	vm.set(vertex.input, 0.5, 0.25, 1, 1)
	vm.run(vertex.main)
	if got, want := positionOf(vm, vertex), []float64{-0.5, 0.25, 1, 1}; !approxEqual(got, want, 1e-6) {
		t.Errorf("position = %v, want %v", got, want)
	}

	entries, err := vertex.module.EntryPoints()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries[0].Interface) != 3 {
		t.Errorf("interface = %v, want input, position and location 1", entries[0].Interface)
	}
	if vertex.module.Version() != spirv.Version1_3 {
		t.Errorf("version changed to %v", vertex.module.Version())
	}
}
