package reflection

import (
	"github.com/gogpu/spvkit/spirv"
)

// maxNesting bounds struct recursion in the layout walk.
const maxNesting = 8

type typeDef struct {
	offset   int
	opcode   spirv.OpCode
	operands []uint32 // words after the result ID
}

// typeTable holds the type and constant declarations of a module.
type typeTable struct {
	types     map[uint32]typeDef
	constants map[uint32]uint32
}

func (t *typeTable) lookup(id uint32) (typeDef, error) {
	def, ok := t.types[id]
	if !ok {
		return typeDef{}, spirv.NewError(spirv.ErrUnsupportedShape, "type %%%d is not declared", id)
	}
	return def, nil
}

func unsupported(def typeDef, format string, args ...any) error {
	return spirv.NewErrorAt(spirv.ErrUnsupportedShape, def.offset, format, args...)
}

// array unwraps one OpTypeArray or OpTypeRuntimeArray level. A runtime
// array reports a count of 0; anything else is its own element with a
// count of 1.
func (t *typeTable) array(id uint32) (element, count uint32, err error) {
	def, err := t.lookup(id)
	if err != nil {
		return 0, 0, err
	}
	switch def.opcode {
	case spirv.OpTypeArray:
		if len(def.operands) < 2 {
			return 0, 0, unsupported(def, "short OpTypeArray")
		}
		length, ok := t.constants[def.operands[1]]
		if !ok {
			return 0, 0, unsupported(def, "array length %%%d is not a constant", def.operands[1])
		}
		return def.operands[0], length, nil
	case spirv.OpTypeRuntimeArray:
		if len(def.operands) < 1 {
			return 0, 0, unsupported(def, "short OpTypeRuntimeArray")
		}
		return def.operands[0], 0, nil
	default:
		return id, 1, nil
	}
}

// width returns the bit width of a scalar int or float type. Only 16, 32
// and 64 bit scalars have a layout.
func (t *typeTable) width(id uint32) (uint32, spirv.OpCode, error) {
	def, err := t.lookup(id)
	if err != nil {
		return 0, 0, err
	}
	if def.opcode != spirv.OpTypeInt && def.opcode != spirv.OpTypeFloat || len(def.operands) < 1 {
		return 0, 0, unsupported(def, "%s is not a numeric scalar", def.opcode)
	}
	switch w := def.operands[0]; w {
	case 16, 32, 64:
		return w, def.opcode, nil
	default:
		return 0, 0, unsupported(def, "unsupported %d-bit %s", w, def.opcode)
	}
}

// size applies the packing law: a scalar takes width/8 bytes, a vector n
// scalars, a matrix rows*columns scalars, a struct the sum of its members
// and an array its element times the length. There is no padding. With
// runtimeOne set a runtime array counts as one element, otherwise it is an
// error.
func (t *typeTable) size(id uint32, runtimeOne bool, depth int) (uint32, error) {
	if depth > maxNesting {
		return 0, spirv.NewError(spirv.ErrUnsupportedShape, "type %%%d nests deeper than %d", id, maxNesting)
	}
	def, err := t.lookup(id)
	if err != nil {
		return 0, err
	}
	switch def.opcode {
	case spirv.OpTypeInt, spirv.OpTypeFloat:
		w, _, err := t.width(id)
		return w / 8, err
	case spirv.OpTypeVector, spirv.OpTypeMatrix:
		if len(def.operands) < 2 {
			return 0, unsupported(def, "short %s", def.opcode)
		}
		component, err := t.size(def.operands[0], runtimeOne, depth+1)
		return component * def.operands[1], err
	case spirv.OpTypeStruct:
		var total uint32
		for i, member := range def.operands {
			n, err := t.size(member, runtimeOne && i == len(def.operands)-1, depth+1)
			if err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	case spirv.OpTypeArray, spirv.OpTypeRuntimeArray:
		element, count, err := t.array(id)
		if err != nil {
			return 0, err
		}
		if count == 0 {
			if !runtimeOne {
				return 0, unsupported(def, "runtime array has no static size")
			}
			count = 1
		}
		n, err := t.size(element, false, depth+1)
		return n * count, err
	default:
		return 0, unsupported(def, "%s has no buffer layout", def.opcode)
	}
}

// dataType classifies a uniform member element type. Vectors and matrices
// must have float components; matrices must be 3x3 or 4x4.
func (t *typeTable) dataType(id uint32) (DataType, error) {
	def, err := t.lookup(id)
	if err != nil {
		return DataTypeNone, err
	}
	switch def.opcode {
	case spirv.OpTypeInt:
		w, _, err := t.width(id)
		if err != nil {
			return DataTypeNone, err
		}
		signed := len(def.operands) > 1 && def.operands[1] == 1
		switch {
		case w == 16 && signed:
			return DataTypeInt16, nil
		case w == 16:
			return DataTypeUInt16, nil
		case w == 32 && signed:
			return DataTypeInt32, nil
		case w == 32:
			return DataTypeUInt32, nil
		case signed:
			return DataTypeInt64, nil
		default:
			return DataTypeUInt64, nil
		}
	case spirv.OpTypeFloat:
		w, _, err := t.width(id)
		if err != nil {
			return DataTypeNone, err
		}
		switch w {
		case 16:
			return DataTypeFloat16, nil
		case 32:
			return DataTypeFloat32, nil
		default:
			return DataTypeFloat64, nil
		}
	case spirv.OpTypeVector:
		if err := t.floatComponent(def); err != nil {
			return DataTypeNone, err
		}
		switch def.operands[1] {
		case 2:
			return DataTypeVector2, nil
		case 3:
			return DataTypeVector3, nil
		case 4:
			return DataTypeVector4, nil
		}
		return DataTypeNone, unsupported(def, "vector of %d components", def.operands[1])
	case spirv.OpTypeMatrix:
		if len(def.operands) < 2 {
			return DataTypeNone, unsupported(def, "short OpTypeMatrix")
		}
		column, err := t.lookup(def.operands[0])
		if err != nil {
			return DataTypeNone, err
		}
		if column.opcode != spirv.OpTypeVector {
			return DataTypeNone, unsupported(def, "matrix column %%%d is not a vector", def.operands[0])
		}
		if err := t.floatComponent(column); err != nil {
			return DataTypeNone, err
		}
		rows, columns := column.operands[1], def.operands[1]
		switch {
		case rows == 3 && columns == 3:
			return DataTypeMatrix3, nil
		case rows == 4 && columns == 4:
			return DataTypeMatrix4, nil
		}
		return DataTypeNone, unsupported(def, "%dx%d matrix", columns, rows)
	case spirv.OpTypeStruct:
		return DataTypeStruct, nil
	default:
		return DataTypeNone, unsupported(def, "%s is not a uniform member type", def.opcode)
	}
}

// floatComponent checks that a vector has 16 or 32 bit float components.
func (t *typeTable) floatComponent(vector typeDef) error {
	if len(vector.operands) < 2 {
		return unsupported(vector, "short OpTypeVector")
	}
	w, opcode, err := t.width(vector.operands[0])
	if err != nil {
		return err
	}
	if opcode != spirv.OpTypeFloat || w == 64 {
		return unsupported(vector, "vector of %d-bit %s", w, opcode)
	}
	return nil
}

// attributeElement strips arrays from a stage interface type, as in
// per-vertex geometry inputs, and reduces a matrix to its column vector.
func (t *typeTable) attributeElement(id uint32) (uint32, error) {
	for range maxNesting {
		element, _, err := t.array(id)
		if err != nil {
			return 0, err
		}
		if element == id {
			break
		}
		id = element
	}
	def, err := t.lookup(id)
	if err != nil {
		return 0, err
	}
	if def.opcode == spirv.OpTypeMatrix {
		if len(def.operands) < 2 {
			return 0, unsupported(def, "short OpTypeMatrix")
		}
		return def.operands[0], nil
	}
	return id, nil
}

// attributeFormat maps a 32-bit int, uint or float scalar or vector to its
// vertex format.
func (t *typeTable) attributeFormat(id uint32) (Format, error) {
	def, err := t.lookup(id)
	if err != nil {
		return FormatUndefined, err
	}
	scalar, count := id, uint32(1)
	if def.opcode == spirv.OpTypeVector {
		if len(def.operands) < 2 {
			return FormatUndefined, unsupported(def, "short OpTypeVector")
		}
		scalar, count = def.operands[0], def.operands[1]
	}
	if count < 1 || count > 4 {
		return FormatUndefined, unsupported(def, "attribute of %d components", count)
	}
	w, opcode, err := t.width(scalar)
	if err != nil {
		return FormatUndefined, err
	}
	if w != 32 {
		return FormatUndefined, unsupported(def, "%d-bit attribute", w)
	}

	base := FormatR32SFloat
	if opcode == spirv.OpTypeInt {
		base = FormatR32UInt
		if sd := t.types[scalar]; len(sd.operands) > 1 && sd.operands[1] == 1 {
			base = FormatR32SInt
		}
	}
	// The R32 formats repeat every three values: UInt, SInt, SFloat.
	return base + Format(3*(count-1)), nil
}

// imageFormats maps OpTypeImage formats to formats. Unknown maps to
// FormatUndefined.
var imageFormats = map[spirv.ImageFormat]Format{
	spirv.ImageFormatUnknown:    FormatUndefined,
	spirv.ImageFormatRgba32f:    FormatR32G32B32A32SFloat,
	spirv.ImageFormatRg32f:      FormatR32G32SFloat,
	spirv.ImageFormatR32f:       FormatR32SFloat,
	spirv.ImageFormatRgba16f:    FormatR16G16B16A16SFloat,
	spirv.ImageFormatRg16f:      FormatR16G16SFloat,
	spirv.ImageFormatR16f:       FormatR16SFloat,
	spirv.ImageFormatRgba8:      FormatR8G8B8A8UNorm,
	spirv.ImageFormatRgba8Snorm: FormatR8G8B8A8SNorm,
	spirv.ImageFormatRg8:        FormatR8G8UNorm,
	spirv.ImageFormatRg8Snorm:   FormatR8G8SNorm,
	spirv.ImageFormatR8:         FormatR8UNorm,
	spirv.ImageFormatR8Snorm:    FormatR8SNorm,
	spirv.ImageFormatRgba32i:    FormatR32G32B32A32SInt,
	spirv.ImageFormatR32i:       FormatR32SInt,
	spirv.ImageFormatRgba32ui:   FormatR32G32B32A32UInt,
	spirv.ImageFormatR32ui:      FormatR32UInt,
}

// image describes an OpTypeImage.
type image struct {
	def          typeDef
	target       TextureTarget
	depth        bool
	multisampled bool
	sampled      uint32
	format       Format
}

func (t *typeTable) image(id uint32) (image, error) {
	def, err := t.lookup(id)
	if err != nil {
		return image{}, err
	}
	if def.opcode != spirv.OpTypeImage || len(def.operands) < 7 {
		return image{}, unsupported(def, "%s is not an image type", def.opcode)
	}
	ops := def.operands
	arrayed := ops[3] == 1

	var target TextureTarget
	switch dim := spirv.Dim(ops[1]); {
	case dim == spirv.Dim1D && arrayed:
		target = Texture1DArray
	case dim == spirv.Dim1D:
		target = Texture1D
	case dim == spirv.Dim2D && arrayed:
		target = Texture2DArray
	case dim == spirv.Dim2D:
		target = Texture2D
	case dim == spirv.Dim3D && !arrayed:
		target = Texture3D
	case dim == spirv.DimCube && !arrayed:
		target = TextureCubeMap
	default:
		return image{}, unsupported(def, "image dimension %d (arrayed %t)", ops[1], arrayed)
	}

	format, ok := imageFormats[spirv.ImageFormat(ops[6])]
	if !ok {
		return image{}, unsupported(def, "image format %d", ops[6])
	}
	return image{
		def:          def,
		target:       target,
		depth:        ops[2] == 1,
		multisampled: ops[4] == 1,
		sampled:      ops[5],
		format:       format,
	}, nil
}
