package patch

import (
	"github.com/gogpu/spvkit/spirv"
)

// emitter encodes a straight-line instruction sequence, allocating result
// IDs from the editor as it goes.
type emitter struct {
	editor *spirv.Editor
	words  []uint32
}

func newEmitter(editor *spirv.Editor) *emitter {
	return &emitter{editor: editor}
}

// op emits <opcode> <resultType> <new id> operands and returns the new ID.
func (e *emitter) op(opcode spirv.OpCode, resultType uint32, operands ...uint32) uint32 {
	id := e.editor.AllocID()
	words := append([]uint32{resultType, id}, operands...)
	e.words = append(e.words, spirv.NewInstruction(opcode, words...).Encode()...)
	return id
}

func (e *emitter) store(pointer, value uint32) {
	e.words = append(e.words, spirv.NewInstruction(spirv.OpStore, pointer, value).Encode()...)
}

// flush queues the emitted words before offset at and resets the buffer.
func (e *emitter) flush(at int) error {
	words := e.words
	e.words = nil
	return e.editor.Insert(at, words...)
}

// returnsOf lists the OpReturn instructions of function id.
func returnsOf(m *spirv.Module, function uint32) ([]spirv.Inst, error) {
	body, err := m.FunctionBody(function)
	if err != nil {
		return nil, err
	}
	var returns []spirv.Inst
	for _, inst := range body {
		if inst.Opcode == spirv.OpReturn {
			returns = append(returns, inst)
		}
	}
	if len(returns) == 0 {
		return nil, spirv.NewErrorAt(spirv.ErrPrecondition, body[0].Offset, "function %%%d has no OpReturn", function)
	}
	return returns, nil
}

// vertexEntry returns the first vertex entry point of m.
func vertexEntry(m *spirv.Module) (spirv.EntryPoint, error) {
	entries, err := m.EntryPoints()
	if err != nil {
		return spirv.EntryPoint{}, err
	}
	for _, entry := range entries {
		if entry.Model == spirv.ExecutionModelVertex {
			return entry, nil
		}
	}
	return spirv.EntryPoint{}, spirv.NewError(spirv.ErrPrecondition, "no vertex entry point")
}
