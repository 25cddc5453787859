package spirv

import (
	"encoding/binary"
	"slices"
)

// Module is a SPIR-V binary held as an index-addressed slice of words.
//
// The byte order found in the input is remembered so that Bytes re-encodes
// the module exactly as it was read.
type Module struct {
	words []uint32
	order binary.ByteOrder
}

// Inst locates one instruction inside a Module.
type Inst struct {
	// Offset is the word index of the opcode word.
	Offset int

	// Opcode is the low half of the opcode word.
	Opcode OpCode

	// WordCount is the high half of the opcode word; it includes the opcode word.
	WordCount int
}

// Next returns the offset of the instruction that follows.
func (i Inst) Next() int {
	return i.Offset + i.WordCount
}

// Parse decodes a binary module. Both byte orders are accepted; the
// instruction stream is validated so that later cursor reads stay in bounds.
func Parse(data []byte) (*Module, error) {
	if len(data)%4 != 0 {
		return nil, NewError(ErrFormat, "size %d is not a multiple of 4", len(data))
	}
	if len(data) < HeaderWords*4 {
		return nil, NewError(ErrFormat, "size %d is smaller than the %d-word header", len(data), HeaderWords)
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(data) == MagicNumber:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(data) == MagicNumber:
		order = binary.BigEndian
	default:
		return nil, NewErrorAt(ErrFormat, 0, "invalid magic 0x%08X", binary.LittleEndian.Uint32(data))
	}

	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = order.Uint32(data[i*4:])
	}

	m := &Module{words: words, order: order}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// FromWords wraps a copy of words as a module. Bytes encodes it little-endian.
func FromWords(words []uint32) (*Module, error) {
	m := &Module{
		words: slices.Clone(words),
		order: binary.LittleEndian,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the header and that instructions exactly tile the stream.
func (m *Module) Validate() error {
	if len(m.words) < HeaderWords {
		return NewError(ErrFormat, "module has %d words, header needs %d", len(m.words), HeaderWords)
	}
	if m.words[wordMagic] != MagicNumber {
		return NewErrorAt(ErrFormat, 0, "invalid magic 0x%08X", m.words[wordMagic])
	}
	_, err := m.Instructions()
	return err
}

// Bytes encodes the module in its original byte order.
func (m *Module) Bytes() []byte {
	buffer := make([]byte, len(m.words)*4)
	for i, word := range m.words {
		m.order.PutUint32(buffer[i*4:], word)
	}
	return buffer
}

// Words returns a copy of the module words.
func (m *Module) Words() []uint32 {
	return slices.Clone(m.words)
}

// Len returns the module length in words, header included.
func (m *Module) Len() int {
	return len(m.words)
}

// Clone returns an independent copy of the module.
func (m *Module) Clone() *Module {
	return &Module{words: slices.Clone(m.words), order: m.order}
}

// Equal reports whether two modules hold the same words.
func (m *Module) Equal(other *Module) bool {
	return slices.Equal(m.words, other.words)
}

// Version returns the header version.
func (m *Module) Version() Version {
	return versionFromWord(m.words[wordVersion])
}

// Generator returns the header generator magic.
func (m *Module) Generator() uint32 {
	return m.words[wordGenerator]
}

// Bound returns the header ID bound: one greater than the largest ID in use.
func (m *Module) Bound() uint32 {
	return m.words[wordBound]
}

// SetBound rewrites the header ID bound.
func (m *Module) SetBound(bound uint32) {
	m.words[wordBound] = bound
}

// Schema returns the reserved schema word.
func (m *Module) Schema() uint32 {
	return m.words[wordSchema]
}

// At decodes the instruction whose opcode word is at offset.
func (m *Module) At(offset int) (Inst, error) {
	if offset < HeaderWords || offset >= len(m.words) {
		return Inst{}, NewErrorAt(ErrFormat, offset, "decode past end of stream (%d words)", len(m.words))
	}
	word := m.words[offset]
	count := int(word >> 16)
	if count == 0 {
		return Inst{}, NewErrorAt(ErrFormat, offset, "zero word count for %s", OpCode(word&0xFFFF))
	}
	if offset+count > len(m.words) {
		return Inst{}, NewErrorAt(ErrFormat, offset, "%s with %d words overruns stream of %d words",
			OpCode(word&0xFFFF), count, len(m.words))
	}
	return Inst{Offset: offset, Opcode: OpCode(word & 0xFFFF), WordCount: count}, nil
}

// Instructions decodes the whole instruction stream.
func (m *Module) Instructions() ([]Inst, error) {
	insts := make([]Inst, 0, len(m.words)/4)
	for offset := HeaderWords; offset < len(m.words); {
		inst, err := m.At(offset)
		if err != nil {
			return nil, err
		}
		insts = append(insts, inst)
		offset = inst.Next()
	}
	return insts, nil
}

// Walk calls fn for every instruction in stream order and stops at the first error.
func (m *Module) Walk(fn func(inst Inst) error) error {
	for offset := HeaderWords; offset < len(m.words); {
		inst, err := m.At(offset)
		if err != nil {
			return err
		}
		if err := fn(inst); err != nil {
			return err
		}
		offset = inst.Next()
	}
	return nil
}

// Operand returns the n-th word after the opcode word (1-indexed).
func (m *Module) Operand(inst Inst, n int) (uint32, error) {
	if n < 1 || n >= inst.WordCount {
		return 0, NewErrorAt(ErrFormat, inst.Offset, "%s has no operand %d (word count %d)",
			inst.Opcode, n, inst.WordCount)
	}
	return m.words[inst.Offset+n], nil
}

// Operands returns the operand words of inst. The slice aliases the module
// and is only valid until the next edit.
func (m *Module) Operands(inst Inst) []uint32 {
	return m.words[inst.Offset+1 : inst.Next()]
}

// LiteralString decodes the null-terminated string starting at operand n.
// It returns the string and the number of words it occupies.
func (m *Module) LiteralString(inst Inst, n int) (string, int, error) {
	if n < 1 || n >= inst.WordCount {
		return "", 0, NewErrorAt(ErrFormat, inst.Offset, "%s has no string operand %d", inst.Opcode, n)
	}
	var bytes []byte
	for i := inst.Offset + n; i < inst.Next(); i++ {
		word := m.words[i]
		for shift := 0; shift < 32; shift += 8 {
			b := byte(word >> shift)
			if b == 0 {
				return string(bytes), i - (inst.Offset + n) + 1, nil
			}
			bytes = append(bytes, b)
		}
	}
	return "", 0, NewErrorAt(ErrFormat, inst.Offset, "%s string operand is not terminated", inst.Opcode)
}
