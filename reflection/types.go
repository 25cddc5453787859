package reflection

import "fmt"

// Format is a texel or vertex attribute format. Values follow VkFormat.
type Format uint32

const (
	FormatUndefined          Format = 0
	FormatR8UNorm            Format = 9
	FormatR8SNorm            Format = 10
	FormatR8G8UNorm          Format = 16
	FormatR8G8SNorm          Format = 17
	FormatR8G8B8A8UNorm      Format = 37
	FormatR8G8B8A8SNorm      Format = 38
	FormatR16SFloat          Format = 76
	FormatR16G16SFloat       Format = 83
	FormatR16G16B16A16SFloat Format = 97
	FormatR32UInt            Format = 98
	FormatR32SInt            Format = 99
	FormatR32SFloat          Format = 100
	FormatR32G32UInt         Format = 101
	FormatR32G32SInt         Format = 102
	FormatR32G32SFloat       Format = 103
	FormatR32G32B32UInt      Format = 104
	FormatR32G32B32SInt      Format = 105
	FormatR32G32B32SFloat    Format = 106
	FormatR32G32B32A32UInt   Format = 107
	FormatR32G32B32A32SInt   Format = 108
	FormatR32G32B32A32SFloat Format = 109
)

var formatNames = map[Format]string{
	FormatUndefined:          "Undefined",
	FormatR8UNorm:            "R8_UNorm",
	FormatR8SNorm:            "R8_SNorm",
	FormatR8G8UNorm:          "R8G8_UNorm",
	FormatR8G8SNorm:          "R8G8_SNorm",
	FormatR8G8B8A8UNorm:      "R8G8B8A8_UNorm",
	FormatR8G8B8A8SNorm:      "R8G8B8A8_SNorm",
	FormatR16SFloat:          "R16_SFloat",
	FormatR16G16SFloat:       "R16G16_SFloat",
	FormatR16G16B16A16SFloat: "R16G16B16A16_SFloat",
	FormatR32UInt:            "R32_UInt",
	FormatR32SInt:            "R32_SInt",
	FormatR32SFloat:          "R32_SFloat",
	FormatR32G32UInt:         "R32G32_UInt",
	FormatR32G32SInt:         "R32G32_SInt",
	FormatR32G32SFloat:       "R32G32_SFloat",
	FormatR32G32B32UInt:      "R32G32B32_UInt",
	FormatR32G32B32SInt:      "R32G32B32_SInt",
	FormatR32G32B32SFloat:    "R32G32B32_SFloat",
	FormatR32G32B32A32UInt:   "R32G32B32A32_UInt",
	FormatR32G32B32A32SInt:   "R32G32B32A32_SInt",
	FormatR32G32B32A32SFloat: "R32G32B32A32_SFloat",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

// DataType is the shape of a uniform buffer member.
type DataType uint32

const (
	DataTypeNone DataType = iota
	DataTypeInt16
	DataTypeUInt16
	DataTypeInt32
	DataTypeUInt32
	DataTypeInt64
	DataTypeUInt64
	DataTypeFloat16
	DataTypeFloat32
	DataTypeFloat64
	DataTypeVector2
	DataTypeVector3
	DataTypeVector4
	DataTypeMatrix3
	DataTypeMatrix4
	DataTypeStruct
)

var dataTypeNames = [...]string{
	DataTypeNone:    "None",
	DataTypeInt16:   "Int16",
	DataTypeUInt16:  "UInt16",
	DataTypeInt32:   "Int32",
	DataTypeUInt32:  "UInt32",
	DataTypeInt64:   "Int64",
	DataTypeUInt64:  "UInt64",
	DataTypeFloat16: "Float16",
	DataTypeFloat32: "Float32",
	DataTypeFloat64: "Float64",
	DataTypeVector2: "Vector2",
	DataTypeVector3: "Vector3",
	DataTypeVector4: "Vector4",
	DataTypeMatrix3: "Matrix3",
	DataTypeMatrix4: "Matrix4",
	DataTypeStruct:  "Struct",
}

func (t DataType) String() string {
	if int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return fmt.Sprintf("DataType(%d)", uint32(t))
}

// TextureTarget is the dimensionality of an image binding.
type TextureTarget uint32

const (
	Texture1D TextureTarget = iota
	Texture1DArray
	Texture2D
	Texture2DArray
	Texture3D
	TextureCubeMap
)

var targetNames = [...]string{
	Texture1D:      "Texture1D",
	Texture1DArray: "Texture1DArray",
	Texture2D:      "Texture2D",
	Texture2DArray: "Texture2DArray",
	Texture3D:      "Texture3D",
	TextureCubeMap: "TextureCubeMap",
}

func (t TextureTarget) String() string {
	if int(t) < len(targetNames) {
		return targetNames[t]
	}
	return fmt.Sprintf("TextureTarget(%d)", uint32(t))
}

// Attribute is a stage input or output.
type Attribute struct {
	Location uint32
	Format   Format
	Name     string
}

// UniformBuffer is a Block-decorated struct in the Uniform storage class.
type UniformBuffer struct {
	// ID numbers uniform buffers in declaration order.
	ID      uint32
	Set     uint32
	Binding uint32
	Array   uint32

	// Size is the packed size of the members times Array.
	Size     uint32
	Name     string
	Uniforms []Uniform
}

// Uniform is one member of a uniform buffer.
type Uniform struct {
	BufferID uint32
	Array    uint32
	Type     DataType
	Offset   uint32
	Size     uint32
	Name     string
}

// Image is a combined image sampler or a separate sampled image.
type Image struct {
	Set          uint32
	Binding      uint32
	Target       TextureTarget
	Array        uint32
	Depth        bool
	Multisampled bool
	Name         string
}

// Sampler is a separate sampler.
type Sampler struct {
	Set     uint32
	Binding uint32
	Name    string
}

// StorageImage is an image read and written without a sampler.
type StorageImage struct {
	Set      uint32
	Binding  uint32
	Target   TextureTarget
	Array    uint32
	Format   Format
	ReadOnly bool
	Name     string
}

// StorageBuffer is a shader storage buffer.
type StorageBuffer struct {
	Set     uint32
	Binding uint32
	Array   uint32

	// Stride is the packed size of one element, counting a trailing
	// runtime array as a single entry.
	Stride   uint32
	ReadOnly bool
	Name     string
}

// PushConstant is a push constant block.
type PushConstant struct {
	Offset uint32
	Size   uint32
	Name   string
}

// Resources is the reflection of one shader module. Attributes are sorted
// by location and descriptors by set, then binding.
type Resources struct {
	Inputs         []Attribute
	Outputs        []Attribute
	UniformBuffers []UniformBuffer
	SampledImages  []Image
	Images         []Image
	Samplers       []Sampler
	StorageImages  []StorageImage
	StorageBuffers []StorageBuffer
	PushConstants  []PushConstant
}
