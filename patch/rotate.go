package patch

import (
	"math"

	"github.com/gogpu/spvkit/spirv"
)

// ClipSpaceRotator rotates the clip-space position of a vertex shader by a
// fixed angle around the Z axis. It is used to correct a fixed display
// orientation without recompiling the shader.
//
// Before every OpReturn of the vertex entry point it loads x, y, z and w,
// stores (x*cos - y*sin, x*sin + y*cos, z, w) back to the position.
type ClipSpaceRotator struct {
	AngleDegrees float32
}

// Patch implements Pass.
func (p ClipSpaceRotator) Patch(m *spirv.Module) error {
	entry, err := vertexEntry(m)
	if err != nil {
		return err
	}
	returns, err := returnsOf(m, entry.Function)
	if err != nil {
		return err
	}

	editor := spirv.NewEditor(m)
	r, err := NewResolver(editor)
	if err != nil {
		return err
	}
	pos, err := findPosition(m, r, entry)
	if err != nil {
		return err
	}
	access, err := requirePositionAccess(r, pos, 0, 1, 2, 3)
	if err != nil {
		return err
	}

	radians := float64(p.AngleDegrees) * math.Pi / 180
	cos, err := r.Require(ConstantF32(access.float, float32(math.Cos(radians))))
	if err != nil {
		return err
	}
	sin, err := r.Require(ConstantF32(access.float, float32(math.Sin(radians))))
	if err != nil {
		return err
	}

	e := newEmitter(editor)
	for _, ret := range returns {
		var c [4]uint32
		for i := range c {
			c[i] = e.op(spirv.OpLoad, access.float, access.component(e, i))
		}
		xc := e.op(spirv.OpFMul, access.float, c[0], cos)
		ys := e.op(spirv.OpFMul, access.float, c[1], sin)
		x := e.op(spirv.OpFSub, access.float, xc, ys)
		xs := e.op(spirv.OpFMul, access.float, c[0], sin)
		yc := e.op(spirv.OpFMul, access.float, c[1], cos)
		y := e.op(spirv.OpFAdd, access.float, xs, yc)
		rotated := e.op(spirv.OpCompositeConstruct, access.vector, x, y, c[2], c[3])
		access.storeVector(e, rotated)
		if err := e.flush(ret.Offset); err != nil {
			return err
		}
	}

	_, err = editor.Commit()
	return err
}
