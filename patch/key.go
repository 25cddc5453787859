package patch

import (
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/spvkit/spirv"
)

// KeyKind tags the declaration category of a Key.
type KeyKind uint8

const (
	KeyFloatType KeyKind = iota
	KeyIntType
	KeyBoolType
	KeyVectorType
	KeyPointerType
	KeyConstantF32
	KeyConstantI32
	KeyConstantComposite
)

// String returns the category name.
func (k KeyKind) String() string {
	switch k {
	case KeyFloatType:
		return "FloatType"
	case KeyIntType:
		return "IntType"
	case KeyBoolType:
		return "BoolType"
	case KeyVectorType:
		return "VectorType"
	case KeyPointerType:
		return "PointerType"
	case KeyConstantF32:
		return "ConstantF32"
	case KeyConstantI32:
		return "ConstantI32"
	case KeyConstantComposite:
		return "ConstantComposite"
	default:
		return fmt.Sprintf("KeyKind(%d)", uint8(k))
	}
}

// maxCompositeParts bounds the constituents a composite key can carry.
const maxCompositeParts = 4

// Key identifies a declaration structurally. Keys are comparable and are
// used directly as map keys; nested declarations are referenced by ID.
type Key struct {
	kind  KeyKind
	a, b  uint32
	parts [maxCompositeParts]uint32
	n     uint8
}

// FloatType matches OpTypeFloat by bit width.
func FloatType(width uint32) Key {
	return Key{kind: KeyFloatType, a: width}
}

// IntType matches OpTypeInt by bit width and signedness.
func IntType(width uint32, signed bool) Key {
	k := Key{kind: KeyIntType, a: width}
	if signed {
		k.b = 1
	}
	return k
}

// BoolType matches OpTypeBool.
func BoolType() Key {
	return Key{kind: KeyBoolType}
}

// VectorType matches OpTypeVector by component type ID and count.
func VectorType(component uint32, count uint32) Key {
	return Key{kind: KeyVectorType, a: component, b: count}
}

// PointerType matches OpTypePointer by storage class and pointee type ID.
func PointerType(storage spirv.StorageClass, pointee uint32) Key {
	return Key{kind: KeyPointerType, a: uint32(storage), b: pointee}
}

// ConstantF32 matches a 32-bit float OpConstant by exact bit pattern.
func ConstantF32(typeID uint32, value float32) Key {
	return Key{kind: KeyConstantF32, a: typeID, b: math.Float32bits(value)}
}

// ConstantI32 matches a 32-bit integer OpConstant by value.
func ConstantI32(typeID uint32, value int32) Key {
	return Key{kind: KeyConstantI32, a: typeID, b: uint32(value)}
}

// ConstantComposite matches OpConstantComposite by type and constituent IDs.
// Keys with more than four parts are invalid and fail to resolve.
func ConstantComposite(typeID uint32, parts ...uint32) Key {
	k := Key{kind: KeyConstantComposite, a: typeID}
	if len(parts) > maxCompositeParts {
		k.n = math.MaxUint8
		return k
	}
	copy(k.parts[:], parts)
	k.n = uint8(len(parts))
	return k
}

// Kind returns the declaration category.
func (k Key) Kind() KeyKind {
	return k.kind
}

func (k Key) valid() bool {
	if k.kind > KeyConstantComposite {
		return false
	}
	return k.kind != KeyConstantComposite || (k.n > 0 && k.n <= maxCompositeParts)
}

// instruction encodes the declaration this key describes with result ID id.
func (k Key) instruction(id uint32) spirv.Instruction {
	switch k.kind {
	case KeyFloatType:
		return spirv.NewInstruction(spirv.OpTypeFloat, id, k.a)
	case KeyIntType:
		return spirv.NewInstruction(spirv.OpTypeInt, id, k.a, k.b)
	case KeyBoolType:
		return spirv.NewInstruction(spirv.OpTypeBool, id)
	case KeyVectorType:
		return spirv.NewInstruction(spirv.OpTypeVector, id, k.a, k.b)
	case KeyPointerType:
		return spirv.NewInstruction(spirv.OpTypePointer, id, k.a, k.b)
	case KeyConstantF32, KeyConstantI32:
		return spirv.NewInstruction(spirv.OpConstant, k.a, id, k.b)
	default:
		words := append([]uint32{k.a, id}, k.parts[:k.n]...)
		return spirv.NewInstruction(spirv.OpConstantComposite, words...)
	}
}

// String formats the key for diagnostics.
func (k Key) String() string {
	switch k.kind {
	case KeyFloatType:
		return fmt.Sprintf("FloatType(%d)", k.a)
	case KeyIntType:
		return fmt.Sprintf("IntType(%d, signed=%t)", k.a, k.b == 1)
	case KeyBoolType:
		return "BoolType"
	case KeyVectorType:
		return fmt.Sprintf("VectorType(%%%d x %d)", k.a, k.b)
	case KeyPointerType:
		return fmt.Sprintf("PointerType(%s, %%%d)", spirv.StorageClass(k.a), k.b)
	case KeyConstantF32:
		return fmt.Sprintf("ConstantF32(%%%d, %g)", k.a, math.Float32frombits(k.b))
	case KeyConstantI32:
		return fmt.Sprintf("ConstantI32(%%%d, %d)", k.a, int32(k.b))
	case KeyConstantComposite:
		if !k.valid() {
			return fmt.Sprintf("ConstantComposite(%%%d, invalid)", k.a)
		}
		ids := make([]string, k.n)
		for i, part := range k.parts[:k.n] {
			ids[i] = fmt.Sprintf("%%%d", part)
		}
		return fmt.Sprintf("ConstantComposite(%%%d, %s)", k.a, strings.Join(ids, ", "))
	default:
		return k.kind.String()
	}
}
