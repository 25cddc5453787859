package spirv

import (
	"slices"
	"testing"
)

func TestSplice_RebasesTrackedOffsets(t *testing.T) {
	m, err := buildFragment(t).Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	insts, _ := m.Instructions()
	at := insts[2].Offset
	drop := insts[2].WordCount
	before := insts[1].Offset
	after := insts[3].Offset
	inside := at + 1

	insert := NewInstruction(OpNop).Encode()
	insert = append(insert, NewInstruction(OpNop).Encode()...)
	insert = append(insert, NewInstruction(OpNop).Encode()...)

	got, err := m.Splice(at, drop, insert, before, at, inside, after)
	if err != nil {
		t.Fatalf("Splice: %v", err)
	}
	want := []int{before, at, at, after + len(insert) - drop}
	if !slices.Equal(got, want) {
		t.Errorf("offsets = %v, want %v", got, want)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("module invalid after splice: %v", err)
	}
}

func TestSplice_OutOfRange(t *testing.T) {
	m, err := buildFragment(t).Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	if _, err := m.Splice(2, 0, nil); !IsFormat(err) {
		t.Errorf("splice into header: got %v", err)
	}
	if _, err := m.Splice(m.Len()-1, 2, nil); !IsFormat(err) {
		t.Errorf("splice past end: got %v", err)
	}
}

func TestEditor_CommitOrder(t *testing.T) {
	m, err := buildFragment(t).Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	bound := m.Bound()

	var store, ret Inst
	_ = m.Walk(func(inst Inst) error {
		switch inst.Opcode {
		case OpStore:
			store = inst
		case OpReturn:
			ret = inst
		}
		return nil
	})

	editor := NewEditor(m)
	a, b := editor.AllocID(), editor.AllocID()
	if a != bound || b != bound+1 {
		t.Fatalf("AllocID = %d, %d; want %d, %d", a, b, bound, bound+1)
	}

	// Replace queued before an insert at the same offset must not swallow it.
	if err := editor.Replace(store, NewInstruction(OpStore, 99, 98).Encode()...); err != nil {
		t.Fatal(err)
	}
	if err := editor.InsertInstruction(store.Offset, NewInstruction(OpTypeBool, a)); err != nil {
		t.Fatal(err)
	}
	if err := editor.InsertInstruction(store.Offset, NewInstruction(OpTypeBool, b)); err != nil {
		t.Fatal(err)
	}
	if err := editor.SetOperand(ret, 1, 0); !IsFormat(err) {
		t.Errorf("SetOperand on OpReturn: got %v", err)
	}

	if m.Bound() != bound {
		t.Fatal("module changed before Commit")
	}

	offsets, err := editor.Commit(ret.Offset)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if m.Bound() != bound+2 {
		t.Errorf("Bound = %d, want %d", m.Bound(), bound+2)
	}

	first, err := m.At(store.Offset)
	if err != nil || first.Opcode != OpTypeBool || m.Operands(first)[0] != a {
		t.Fatalf("first inserted = %+v (%v)", first, err)
	}
	second, _ := m.At(first.Next())
	if second.Opcode != OpTypeBool || m.Operands(second)[0] != b {
		t.Fatalf("second inserted = %+v", second)
	}
	replaced, _ := m.At(second.Next())
	if replaced.Opcode != OpStore || !slices.Equal(m.Operands(replaced), []uint32{99, 98}) {
		t.Fatalf("replacement = %+v %v", replaced, m.Operands(replaced))
	}
	moved, err := m.At(offsets[0])
	if err != nil || moved.Opcode != OpReturn {
		t.Errorf("tracked OpReturn at %d is %v (%v)", offsets[0], moved.Opcode, err)
	}
}

func TestEditor_AbandonLeavesModuleUntouched(t *testing.T) {
	m, err := buildFragment(t).Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	original := m.Clone()

	editor := NewEditor(m)
	editor.AllocID()
	insts, _ := m.Instructions()
	_ = editor.Remove(insts[0])
	_ = editor.Insert(insts[1].Offset, NewInstruction(OpNop).Encode()...)
	if !editor.Pending() {
		t.Error("Pending() = false with queued edits")
	}

	if !m.Equal(original) {
		t.Error("queued edits changed the module")
	}
}

func TestEditor_OverlappingEdits(t *testing.T) {
	m, err := buildFragment(t).Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	original := m.Clone()
	insts, _ := m.Instructions()

	editor := NewEditor(m)
	_ = editor.Remove(insts[1])
	_ = editor.SetOperand(insts[1], 1, 7)
	if _, err := editor.Commit(); !IsFormat(err) {
		t.Fatalf("expected overlap error, got %v", err)
	}
	if !m.Equal(original) {
		t.Error("failed Commit changed the module")
	}
}

func TestEditor_SetOperand(t *testing.T) {
	m, err := buildFragment(t).Module()
	if err != nil {
		t.Fatalf("Module: %v", err)
	}
	var decorate Inst
	_ = m.Walk(func(inst Inst) error {
		if inst.Opcode == OpDecorate {
			decorate = inst
		}
		return nil
	})

	editor := NewEditor(m)
	if err := editor.SetOperand(decorate, 3, 5); err != nil {
		t.Fatal(err)
	}
	if !editor.Pending() {
		t.Error("Pending() = false")
	}
	if _, err := editor.Commit(); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Operand(decorate, 3); v != 5 {
		t.Errorf("location = %d, want 5", v)
	}
}

func TestEditor_InsertInsideRemovedRange(t *testing.T) {
	tests := []struct {
		name string
		drop func(e *Editor, inst Inst) error
	}{
		{"replace", func(e *Editor, inst Inst) error {
			return e.Replace(inst, NewInstruction(OpTypeVector, 50, 2, 4).Encode()...)
		}},
		{"remove", func(e *Editor, inst Inst) error {
			return e.Remove(inst)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := buildFragment(t).Module()
			if err != nil {
				t.Fatalf("Module: %v", err)
			}
			original := m.Clone()

			var vector Inst
			_ = m.Walk(func(inst Inst) error {
				if inst.Opcode == OpTypeVector && vector.WordCount == 0 {
					vector = inst
				}
				return nil
			})
			if vector.WordCount < 3 {
				t.Fatal("fixture has no OpTypeVector")
			}

			editor := NewEditor(m)
			if err := tt.drop(editor, vector); err != nil {
				t.Fatal(err)
			}
			if err := editor.InsertInstruction(vector.Offset+2, NewInstruction(OpTypeBool, editor.AllocID())); err != nil {
				t.Fatal(err)
			}
			if _, err := editor.Commit(); !IsFormat(err) {
				t.Fatalf("Commit error = %v, want format error", err)
			}
			if !m.Equal(original) {
				t.Error("failed Commit changed the module")
			}
		})
	}
}
