package reflection

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// maxCount bounds section counts and string lengths read from a stream.
const maxCount = 1 << 16

type streamWriter struct {
	w   io.Writer
	buf []byte
	n   int64
	err error
}

func (s *streamWriter) flush() {
	if s.err != nil || len(s.buf) == 0 {
		return
	}
	n, err := s.w.Write(s.buf)
	s.n += int64(n)
	s.err = err
	s.buf = s.buf[:0]
}

func (s *streamWriter) u32(v uint32) {
	s.buf = binary.LittleEndian.AppendUint32(s.buf, v)
}

func (s *streamWriter) flag(v bool) {
	var b byte
	if v {
		b = 1
	}
	s.buf = append(s.buf, b)
}

func (s *streamWriter) str(v string) {
	s.u32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

// WriteTo writes r as a sequence of sections, each a little-endian u32
// count followed by its records: inputs, outputs, uniform buffers (each with
// its nested members), sampled images, separate images, samplers, storage
// images, storage buffers and push constants. Strings are a u32 length
// followed by the bytes; booleans are one byte.
func (r *Resources) WriteTo(w io.Writer) (int64, error) {
	s := &streamWriter{w: w}

	for _, attrs := range [][]Attribute{r.Inputs, r.Outputs} {
		s.u32(uint32(len(attrs)))
		for _, a := range attrs {
			s.u32(a.Location)
			s.u32(uint32(a.Format))
			s.str(a.Name)
		}
	}

	s.u32(uint32(len(r.UniformBuffers)))
	for _, b := range r.UniformBuffers {
		s.u32(b.ID)
		s.u32(b.Set)
		s.u32(b.Binding)
		s.u32(b.Array)
		s.u32(b.Size)
		s.str(b.Name)
		s.u32(uint32(len(b.Uniforms)))
		for _, u := range b.Uniforms {
			s.u32(u.BufferID)
			s.u32(u.Array)
			s.u32(uint32(u.Type))
			s.u32(u.Offset)
			s.u32(u.Size)
			s.str(u.Name)
		}
		s.flush()
	}

	for _, images := range [][]Image{r.SampledImages, r.Images} {
		s.u32(uint32(len(images)))
		for _, img := range images {
			s.u32(img.Set)
			s.u32(img.Binding)
			s.u32(uint32(img.Target))
			s.u32(img.Array)
			s.flag(img.Depth)
			s.flag(img.Multisampled)
			s.str(img.Name)
		}
	}

	s.u32(uint32(len(r.Samplers)))
	for _, sampler := range r.Samplers {
		s.u32(sampler.Set)
		s.u32(sampler.Binding)
		s.str(sampler.Name)
	}

	s.u32(uint32(len(r.StorageImages)))
	for _, img := range r.StorageImages {
		s.u32(img.Set)
		s.u32(img.Binding)
		s.u32(uint32(img.Target))
		s.u32(img.Array)
		s.u32(uint32(img.Format))
		s.flag(img.ReadOnly)
		s.str(img.Name)
	}

	s.u32(uint32(len(r.StorageBuffers)))
	for _, b := range r.StorageBuffers {
		s.u32(b.Set)
		s.u32(b.Binding)
		s.u32(b.Array)
		s.u32(b.Stride)
		s.flag(b.ReadOnly)
		s.str(b.Name)
	}

	s.u32(uint32(len(r.PushConstants)))
	for _, p := range r.PushConstants {
		s.u32(p.Offset)
		s.u32(p.Size)
		s.str(p.Name)
	}

	s.flush()
	return s.n, s.err
}

// MarshalBinary returns the stream written by WriteTo.
func (r *Resources) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type streamReader struct {
	r       io.Reader
	scratch [4]byte
	err     error
}

func (s *streamReader) u32() uint32 {
	if s.err != nil {
		return 0
	}
	if _, err := io.ReadFull(s.r, s.scratch[:4]); err != nil {
		s.err = err
		return 0
	}
	return binary.LittleEndian.Uint32(s.scratch[:4])
}

func (s *streamReader) flag() bool {
	if s.err != nil {
		return false
	}
	if _, err := io.ReadFull(s.r, s.scratch[:1]); err != nil {
		s.err = err
		return false
	}
	return s.scratch[0] != 0
}

func (s *streamReader) count() int {
	n := s.u32()
	if s.err == nil && n > maxCount {
		s.err = fmt.Errorf("count %d exceeds %d", n, maxCount)
		return 0
	}
	return int(n)
}

func (s *streamReader) str() string {
	n := s.count()
	if s.err != nil || n == 0 {
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(s.r, b); err != nil {
		s.err = err
		return ""
	}
	return string(b)
}

// readSection reads a count-prefixed section, leaving it nil when empty.
func readSection[T any](s *streamReader, read func() T) []T {
	n := s.count()
	if n == 0 {
		return nil
	}
	out := make([]T, 0, n)
	for i := 0; i < n && s.err == nil; i++ {
		out = append(out, read())
	}
	return out
}

// ReadResources parses a stream written by WriteTo. The reader must end
// with the stream.
func ReadResources(r io.Reader) (*Resources, error) {
	s := &streamReader{r: r}

	attribute := func() Attribute {
		return Attribute{Location: s.u32(), Format: Format(s.u32()), Name: s.str()}
	}
	image := func() Image {
		return Image{
			Set: s.u32(), Binding: s.u32(), Target: TextureTarget(s.u32()), Array: s.u32(),
			Depth: s.flag(), Multisampled: s.flag(), Name: s.str(),
		}
	}

	res := &Resources{}
	res.Inputs = readSection(s, attribute)
	res.Outputs = readSection(s, attribute)
	res.UniformBuffers = readSection(s, func() UniformBuffer {
		b := UniformBuffer{
			ID: s.u32(), Set: s.u32(), Binding: s.u32(), Array: s.u32(), Size: s.u32(), Name: s.str(),
		}
		b.Uniforms = readSection(s, func() Uniform {
			return Uniform{
				BufferID: s.u32(), Array: s.u32(), Type: DataType(s.u32()),
				Offset: s.u32(), Size: s.u32(), Name: s.str(),
			}
		})
		return b
	})
	res.SampledImages = readSection(s, image)
	res.Images = readSection(s, image)
	res.Samplers = readSection(s, func() Sampler {
		return Sampler{Set: s.u32(), Binding: s.u32(), Name: s.str()}
	})
	res.StorageImages = readSection(s, func() StorageImage {
		return StorageImage{
			Set: s.u32(), Binding: s.u32(), Target: TextureTarget(s.u32()), Array: s.u32(),
			Format: Format(s.u32()), ReadOnly: s.flag(), Name: s.str(),
		}
	})
	res.StorageBuffers = readSection(s, func() StorageBuffer {
		return StorageBuffer{
			Set: s.u32(), Binding: s.u32(), Array: s.u32(), Stride: s.u32(),
			ReadOnly: s.flag(), Name: s.str(),
		}
	})
	res.PushConstants = readSection(s, func() PushConstant {
		return PushConstant{Offset: s.u32(), Size: s.u32(), Name: s.str()}
	})

	if s.err != nil {
		if s.err == io.EOF {
			s.err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read reflection: %w", s.err)
	}
	if n, _ := s.r.Read(s.scratch[:1]); n != 0 {
		return nil, fmt.Errorf("read reflection: trailing data after push constants")
	}
	return res, nil
}
