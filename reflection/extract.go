package reflection

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gogpu/spvkit/spirv"
)

type decorations map[spirv.Decoration]uint32

type memberKey struct {
	id     uint32
	member uint32
}

type variable struct {
	offset  int
	id      uint32
	pointer uint32
	storage spirv.StorageClass
}

// module is the part of a module reflection reads, gathered in one scan.
type module struct {
	typeTable
	names             map[uint32]string
	memberNames       map[memberKey]string
	decorations       map[uint32]decorations
	memberDecorations map[memberKey]decorations
	variables         []variable
	interfaces        map[uint32]bool
}

func scan(m *spirv.Module) (*module, error) {
	info := &module{
		typeTable: typeTable{
			types:     make(map[uint32]typeDef),
			constants: make(map[uint32]uint32),
		},
		names:             make(map[uint32]string),
		memberNames:       make(map[memberKey]string),
		decorations:       make(map[uint32]decorations),
		memberDecorations: make(map[memberKey]decorations),
		interfaces:        make(map[uint32]bool),
	}

	entries, err := m.EntryPoints()
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		for _, id := range entry.Interface {
			info.interfaces[id] = true
		}
	}

	err = m.Walk(func(inst spirv.Inst) error {
		ops := m.Operands(inst)
		short := func(n int) error {
			if len(ops) < n {
				return spirv.NewErrorAt(spirv.ErrFormat, inst.Offset, "short %s", inst.Opcode)
			}
			return nil
		}

		switch inst.Opcode {
		case spirv.OpName:
			if err := short(2); err != nil {
				return err
			}
			name, _, err := m.LiteralString(inst, 2)
			if err != nil {
				return err
			}
			info.names[ops[0]] = name
		case spirv.OpMemberName:
			if err := short(3); err != nil {
				return err
			}
			name, _, err := m.LiteralString(inst, 3)
			if err != nil {
				return err
			}
			info.memberNames[memberKey{ops[0], ops[1]}] = name
		case spirv.OpDecorate:
			if err := short(2); err != nil {
				return err
			}
			set := info.decorations[ops[0]]
			if set == nil {
				set = make(decorations)
				info.decorations[ops[0]] = set
			}
			set[spirv.Decoration(ops[1])] = literal(ops[2:])
		case spirv.OpMemberDecorate:
			if err := short(3); err != nil {
				return err
			}
			key := memberKey{ops[0], ops[1]}
			set := info.memberDecorations[key]
			if set == nil {
				set = make(decorations)
				info.memberDecorations[key] = set
			}
			set[spirv.Decoration(ops[2])] = literal(ops[3:])
		case spirv.OpTypeVoid, spirv.OpTypeBool, spirv.OpTypeInt, spirv.OpTypeFloat,
			spirv.OpTypeVector, spirv.OpTypeMatrix, spirv.OpTypeImage, spirv.OpTypeSampler,
			spirv.OpTypeSampledImage, spirv.OpTypeArray, spirv.OpTypeRuntimeArray,
			spirv.OpTypeStruct, spirv.OpTypePointer, spirv.OpTypeFunction:
			if err := short(1); err != nil {
				return err
			}
			info.types[ops[0]] = typeDef{offset: inst.Offset, opcode: inst.Opcode, operands: ops[1:]}
		case spirv.OpConstant:
			if err := short(3); err != nil {
				return err
			}
			info.constants[ops[1]] = ops[2]
		case spirv.OpVariable:
			if err := short(3); err != nil {
				return err
			}
			storage := spirv.StorageClass(ops[2])
			if storage != spirv.StorageClassFunction {
				info.variables = append(info.variables, variable{
					offset: inst.Offset, id: ops[1], pointer: ops[0], storage: storage,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func literal(words []uint32) uint32 {
	if len(words) == 0 {
		return 0
	}
	return words[0]
}

func (info *module) decoration(id uint32, d spirv.Decoration) (uint32, bool) {
	v, ok := info.decorations[id][d]
	return v, ok
}

func (info *module) memberDecoration(id, member uint32, d spirv.Decoration) (uint32, bool) {
	v, ok := info.memberDecorations[memberKey{id, member}][d]
	return v, ok
}

// pointee returns the type a variable points to.
func (info *module) pointee(v variable) (uint32, error) {
	def, ok := info.types[v.pointer]
	if !ok || def.opcode != spirv.OpTypePointer || len(def.operands) < 2 {
		return 0, spirv.NewErrorAt(spirv.ErrFormat, v.offset,
			"variable %%%d has no pointer type %%%d", v.id, v.pointer)
	}
	return def.operands[1], nil
}

// builtIn reports whether v is a built-in variable or a block of built-ins.
func (info *module) builtIn(v variable, pointee uint32) bool {
	if _, ok := info.decoration(v.id, spirv.DecorationBuiltIn); ok {
		return true
	}
	def := info.types[pointee]
	if def.opcode != spirv.OpTypeStruct {
		return false
	}
	for i := range def.operands {
		if _, ok := info.memberDecoration(pointee, uint32(i), spirv.DecorationBuiltIn); ok {
			return true
		}
	}
	return false
}

// binding returns the descriptor set and binding of a variable.
func (info *module) binding(id uint32) (set, binding uint32) {
	set, _ = info.decoration(id, spirv.DecorationDescriptorSet)
	binding, _ = info.decoration(id, spirv.DecorationBinding)
	return set, binding
}

// Extract reflects the shader-visible resources of m. Any resource whose
// type has no layout or classification fails the whole extraction with an
// ErrUnsupportedShape error.
func Extract(m *spirv.Module) (*Resources, error) {
	info, err := scan(m)
	if err != nil {
		return nil, err
	}

	r := &Resources{}
	for _, v := range info.variables {
		pointee, err := info.pointee(v)
		if err != nil {
			return nil, err
		}
		switch v.storage {
		case spirv.StorageClassInput, spirv.StorageClassOutput:
			err = info.attribute(r, v, pointee)
		case spirv.StorageClassUniform:
			err = info.uniform(r, v, pointee)
		case spirv.StorageClassStorageBuffer:
			err = info.storageBuffer(r, v, pointee)
		case spirv.StorageClassUniformConstant:
			err = info.opaque(r, v, pointee)
		case spirv.StorageClassPushConstant:
			err = info.pushConstant(r, v, pointee)
		}
		if err != nil {
			return nil, fmt.Errorf("reflect %%%d: %w", v.id, err)
		}
	}

	byLocation := func(a, b Attribute) int { return cmp.Compare(a.Location, b.Location) }
	slices.SortStableFunc(r.Inputs, byLocation)
	slices.SortStableFunc(r.Outputs, byLocation)
	sortDescriptors(r.UniformBuffers, func(b UniformBuffer) (uint32, uint32) { return b.Set, b.Binding })
	sortDescriptors(r.SampledImages, func(i Image) (uint32, uint32) { return i.Set, i.Binding })
	sortDescriptors(r.Images, func(i Image) (uint32, uint32) { return i.Set, i.Binding })
	sortDescriptors(r.Samplers, func(s Sampler) (uint32, uint32) { return s.Set, s.Binding })
	sortDescriptors(r.StorageImages, func(i StorageImage) (uint32, uint32) { return i.Set, i.Binding })
	sortDescriptors(r.StorageBuffers, func(b StorageBuffer) (uint32, uint32) { return b.Set, b.Binding })
	return r, nil
}

func sortDescriptors[T any](s []T, key func(T) (uint32, uint32)) {
	slices.SortStableFunc(s, func(a, b T) int {
		setA, bindingA := key(a)
		setB, bindingB := key(b)
		return cmp.Or(cmp.Compare(setA, setB), cmp.Compare(bindingA, bindingB))
	})
}

func (info *module) attribute(r *Resources, v variable, pointee uint32) error {
	if !info.interfaces[v.id] {
		return nil
	}
	element, err := info.attributeElement(pointee)
	if err != nil {
		return err
	}
	if info.builtIn(v, element) {
		return nil
	}
	format, err := info.attributeFormat(element)
	if err != nil {
		return err
	}
	location, _ := info.decoration(v.id, spirv.DecorationLocation)
	attr := Attribute{Location: location, Format: format, Name: info.names[v.id]}
	if v.storage == spirv.StorageClassInput {
		r.Inputs = append(r.Inputs, attr)
	} else {
		r.Outputs = append(r.Outputs, attr)
	}
	return nil
}

func (info *module) uniform(r *Resources, v variable, pointee uint32) error {
	block, count, err := info.array(pointee)
	if err != nil {
		return err
	}
	if _, ok := info.decoration(block, spirv.DecorationBufferBlock); ok {
		return info.storageBuffer(r, v, pointee)
	}
	def, err := info.lookup(block)
	if err != nil {
		return err
	}
	if _, ok := info.decoration(block, spirv.DecorationBlock); !ok || def.opcode != spirv.OpTypeStruct {
		return unsupported(def, "uniform %%%d is not a Block struct", v.id)
	}
	if count == 0 {
		return unsupported(def, "runtime array of uniform buffers")
	}

	id := uint32(len(r.UniformBuffers))
	set, binding := info.binding(v.id)
	buffer := UniformBuffer{
		ID:      id,
		Set:     set,
		Binding: binding,
		Array:   count,
		Name:    info.names[v.id],
	}
	if buffer.Name == "" {
		buffer.Name = info.names[block]
	}
	if buffer.Name == "" {
		buffer.Name = fmt.Sprintf("cbuffer_%d", id)
	}

	var offset uint32
	for i, member := range def.operands {
		element, array, err := info.array(member)
		if err != nil {
			return err
		}
		if array == 0 {
			return unsupported(def, "member %d is a runtime array", i)
		}
		dataType, err := info.dataType(element)
		if err != nil {
			return err
		}
		size, err := info.size(member, false, 0)
		if err != nil {
			return err
		}
		buffer.Uniforms = append(buffer.Uniforms, Uniform{
			BufferID: id,
			Array:    array,
			Type:     dataType,
			Offset:   offset,
			Size:     size,
			Name:     info.memberNames[memberKey{block, uint32(i)}],
		})
		offset += size
	}
	buffer.Size = offset * count
	r.UniformBuffers = append(r.UniformBuffers, buffer)
	return nil
}

func (info *module) storageBuffer(r *Resources, v variable, pointee uint32) error {
	block, count, err := info.array(pointee)
	if err != nil {
		return err
	}
	def, err := info.lookup(block)
	if err != nil {
		return err
	}
	if def.opcode != spirv.OpTypeStruct {
		return unsupported(def, "storage buffer %%%d is not a struct", v.id)
	}
	stride, err := info.size(block, true, 0)
	if err != nil {
		return err
	}

	_, readOnly := info.decoration(v.id, spirv.DecorationNonWritable)
	if !readOnly && len(def.operands) > 0 {
		readOnly = true
		for i := range def.operands {
			if _, ok := info.memberDecoration(block, uint32(i), spirv.DecorationNonWritable); !ok {
				readOnly = false
				break
			}
		}
	}

	set, binding := info.binding(v.id)
	r.StorageBuffers = append(r.StorageBuffers, StorageBuffer{
		Set:      set,
		Binding:  binding,
		Array:    count,
		Stride:   stride,
		ReadOnly: readOnly,
		Name:     info.names[v.id],
	})
	return nil
}

// opaque classifies UniformConstant variables: images, samplers and
// combined image samplers.
func (info *module) opaque(r *Resources, v variable, pointee uint32) error {
	element, count, err := info.array(pointee)
	if err != nil {
		return err
	}
	def, err := info.lookup(element)
	if err != nil {
		return err
	}
	set, binding := info.binding(v.id)
	name := info.names[v.id]

	switch def.opcode {
	case spirv.OpTypeSampler:
		r.Samplers = append(r.Samplers, Sampler{Set: set, Binding: binding, Name: name})
		return nil
	case spirv.OpTypeSampledImage:
		if len(def.operands) < 1 {
			return unsupported(def, "short OpTypeSampledImage")
		}
		img, err := info.image(def.operands[0])
		if err != nil {
			return err
		}
		r.SampledImages = append(r.SampledImages, Image{
			Set: set, Binding: binding, Target: img.target, Array: count,
			Depth: img.depth, Multisampled: img.multisampled, Name: name,
		})
		return nil
	case spirv.OpTypeImage:
		img, err := info.image(element)
		if err != nil {
			return err
		}
		if img.sampled == 2 {
			_, readOnly := info.decoration(v.id, spirv.DecorationNonWritable)
			r.StorageImages = append(r.StorageImages, StorageImage{
				Set: set, Binding: binding, Target: img.target, Array: count,
				Format: img.format, ReadOnly: readOnly, Name: name,
			})
			return nil
		}
		r.Images = append(r.Images, Image{
			Set: set, Binding: binding, Target: img.target, Array: count,
			Depth: img.depth, Multisampled: img.multisampled, Name: name,
		})
		return nil
	default:
		return unsupported(def, "%s in UniformConstant storage", def.opcode)
	}
}

func (info *module) pushConstant(r *Resources, v variable, pointee uint32) error {
	def, err := info.lookup(pointee)
	if err != nil {
		return err
	}
	if def.opcode != spirv.OpTypeStruct {
		return unsupported(def, "push constant %%%d is not a struct", v.id)
	}
	size, err := info.size(pointee, false, 0)
	if err != nil {
		return err
	}
	offset, _ := info.memberDecoration(pointee, 0, spirv.DecorationOffset)
	name := info.names[v.id]
	if name == "" {
		name = info.names[pointee]
	}
	r.PushConstants = append(r.PushConstants, PushConstant{Offset: offset, Size: size, Name: name})
	return nil
}
