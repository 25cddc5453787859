package spirv

// EntryPoint is a decoded OpEntryPoint.
type EntryPoint struct {
	Inst      Inst
	Model     ExecutionModel
	Function  uint32
	Name      string
	Interface []uint32

	// InterfaceOperand is the operand index of the first interface ID.
	InterfaceOperand int
}

// EntryPoints decodes every OpEntryPoint in stream order.
func (m *Module) EntryPoints() ([]EntryPoint, error) {
	var entries []EntryPoint
	err := m.Walk(func(inst Inst) error {
		if inst.Opcode != OpEntryPoint {
			return nil
		}
		if inst.WordCount < 4 {
			return NewErrorAt(ErrFormat, inst.Offset, "OpEntryPoint with %d words", inst.WordCount)
		}
		name, words, err := m.LiteralString(inst, 3)
		if err != nil {
			return err
		}
		ops := m.Operands(inst)
		first := 3 + words
		entries = append(entries, EntryPoint{
			Inst:             inst,
			Model:            ExecutionModel(ops[0]),
			Function:         ops[1],
			Name:             name,
			Interface:        append([]uint32(nil), ops[first-1:]...),
			InterfaceOperand: first,
		})
		return nil
	})
	return entries, err
}

// FirstFunction returns the offset of the first OpFunction, or the module
// length when the module declares no functions.
func (m *Module) FirstFunction() (int, error) {
	offset := m.Len()
	err := m.Walk(func(inst Inst) error {
		if inst.Opcode == OpFunction {
			offset = inst.Offset
			return errStop
		}
		return nil
	})
	if err == errStop {
		err = nil
	}
	return offset, err
}

// FunctionBody returns the instructions from the OpFunction defining id up
// to and including its OpFunctionEnd.
func (m *Module) FunctionBody(id uint32) ([]Inst, error) {
	insts, err := m.Instructions()
	if err != nil {
		return nil, err
	}
	for i, inst := range insts {
		if inst.Opcode != OpFunction || inst.WordCount < 5 || m.words[inst.Offset+2] != id {
			continue
		}
		for j := i; j < len(insts); j++ {
			if insts[j].Opcode == OpFunctionEnd {
				return insts[i : j+1], nil
			}
		}
		return nil, NewErrorAt(ErrFormat, inst.Offset, "function %%%d has no OpFunctionEnd", id)
	}
	return nil, NewError(ErrPrecondition, "function %%%d not found", id)
}

// errStop ends a Walk early without reporting an error.
var errStop = &Error{Kind: ErrFormat, Message: "stop", Offset: -1}
