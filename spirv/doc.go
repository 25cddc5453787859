// Package spirv reads, edits and builds SPIR-V binary modules.
//
// SPIR-V is the standard intermediate language for GPU shaders,
// used by Vulkan, OpenCL, and other APIs.
//
// # Reading
//
// Parse validates a binary and exposes it as a Module, an index-addressed
// slice of words. Instructions are located with At, Walk or Instructions,
// and their operands are read with Operand and LiteralString. Every read is
// bounds-checked: a zero word count or an instruction that runs past the end
// of the stream is reported as an ErrFormat error.
//
//	module, err := spirv.Parse(data)
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = module.Walk(func(inst spirv.Inst) error {
//		fmt.Println(inst.Offset, inst.Opcode)
//		return nil
//	})
//
// # Editing
//
// Splice is the single length-changing primitive. Editor builds on it:
// edits are recorded against the offsets of the unedited module and applied
// together by Commit, which also writes the new ID bound. An abandoned Editor
// leaves the module untouched.
//
//	editor := spirv.NewEditor(module)
//	id := editor.AllocID()
//	_ = editor.InsertInstruction(at, spirv.NewInstruction(spirv.OpTypeBool, id))
//	_, err = editor.Commit()
//
// # Building
//
// ModuleBuilder assembles modules section by section:
//
//	builder := spirv.NewModuleBuilder(spirv.Version1_3)
//	builder.AddCapability(spirv.CapabilityShader)
//	builder.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
//	floatType := builder.AddTypeFloat(32)
//	vec4Type := builder.AddTypeVector(floatType, 4)
//	binary := builder.Build()
//
// # SPIR-V Structure
//
// SPIR-V modules consist of:
//   - Header (magic, version, generator, bound, schema)
//   - Capabilities (required features)
//   - Extensions (optional extensions)
//   - Extended instruction imports (GLSL.std.450, etc.)
//   - Memory model (addressing and memory model)
//   - Entry points (shader entry functions)
//   - Execution modes (shader configuration)
//   - Debug information (names, source info)
//   - Annotations (decorations)
//   - Types, constants and global variables
//   - Functions (code)
//
// # References
//
// SPIR-V Specification: https://registry.khronos.org/SPIR-V/specs/unified1/SPIRV.html
package spirv
