// Package reflection extracts the shader-visible resources of a SPIR-V
// module: stage inputs and outputs, uniform buffers with their member
// layout, images, samplers, storage images and buffers, and push constants.
//
// Uniform members are packed without padding: each member starts where the
// previous one ends and takes width/8 bytes per scalar component, times its
// array length. A module with any resource outside these rules fails as a
// whole with a spirv.ErrUnsupportedShape error; partial reflection is
// never returned.
//
// The result serializes to a compact little-endian stream with
// Resources.WriteTo and is read back with ReadResources.
package reflection
