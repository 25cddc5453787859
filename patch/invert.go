package patch

import (
	"github.com/gogpu/spvkit/spirv"
)

// OrdinateInverter negates the Y coordinate of the clip-space position
// before every OpReturn of the vertex entry point, flipping the image
// vertically for APIs whose clip space Y axis points the other way.
type OrdinateInverter struct{}

// Patch implements Pass.
func (OrdinateInverter) Patch(m *spirv.Module) error {
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
	access, err := requirePositionAccess(r, pos, 1)
	if err != nil {
		return err
	}

	e := newEmitter(editor)
	for _, ret := range returns {
		ptr := access.component(e, 1)
		y := e.op(spirv.OpLoad, access.float, ptr)
		e.store(ptr, e.op(spirv.OpFNegate, access.float, y))
		if err := e.flush(ret.Offset); err != nil {
			return err
		}
	}

	_, err = editor.Commit()
	return err
}
