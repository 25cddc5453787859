// Package shadercache stores a compiled shader, its patched SPIR-V bytecode
// and its reflection stream, in a single optionally compressed container.
//
// A container starts with an uncompressed header:
//
//	magic    [4]byte  "SPVC"
//	version  u16      container format version
//	codec    u8       payload codec
//	reserved u8
//	length   u32      uncompressed payload length
//
// followed by the payload, compressed with the codec:
//
//	stage      u32
//	bytecode   u32 length + bytes
//	reflection u32 length + bytes
//
// All integers are little-endian.
package shadercache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/gogpu/spvkit/reflection"
	"github.com/gogpu/spvkit/spirv"
)

// FormatVersion is the container version written by Encode.
const FormatVersion = 1

// maxPayload bounds the uncompressed payload accepted by Decode.
const maxPayload = 256 << 20

var magic = [4]byte{'S', 'P', 'V', 'C'}

const headerSize = 12

// ErrInvalid is returned for data that is not a readable container.
var ErrInvalid = errors.New("shadercache: invalid container")

// Codec selects the payload compression.
type Codec uint8

const (
	// CodecNone stores the payload as is.
	CodecNone Codec = iota

	// CodecLZ4 compresses with LZ4 frames. Fast to decode; the default.
	CodecLZ4

	// CodecXZ compresses with xz for the smallest containers.
	CodecXZ
)

var codecNames = [...]string{
	CodecNone: "none",
	CodecLZ4:  "lz4",
	CodecXZ:   "xz",
}

func (c Codec) String() string {
	if int(c) < len(codecNames) {
		return codecNames[c]
	}
	return fmt.Sprintf("Codec(%d)", uint8(c))
}

// ParseCodec parses a codec name as printed by Codec.String.
func ParseCodec(name string) (Codec, error) {
	for i, n := range codecNames {
		if strings.EqualFold(name, n) {
			return Codec(i), nil
		}
	}
	return 0, fmt.Errorf("unknown codec %q (want one of %s)", name, strings.Join(codecNames[:], ", "))
}

// Options configures Encode.
type Options struct {
	Codec Codec
}

// DefaultOptions returns the options used by the shader pipeline.
func DefaultOptions() Options {
	return Options{Codec: CodecLZ4}
}

// Entry is one cached shader.
type Entry struct {
	Stage      spirv.ExecutionModel
	Bytecode   []byte
	Reflection []byte
}

// Module parses the cached bytecode.
func (e *Entry) Module() (*spirv.Module, error) {
	return spirv.Parse(e.Bytecode)
}

// Resources parses the cached reflection stream.
func (e *Entry) Resources() (*reflection.Resources, error) {
	return reflection.ReadResources(bytes.NewReader(e.Reflection))
}

func (e *Entry) payload() []byte {
	buf := make([]byte, 0, 12+len(e.Bytecode)+len(e.Reflection))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Stage))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Bytecode)))
	buf = append(buf, e.Bytecode...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Reflection)))
	buf = append(buf, e.Reflection...)
	return buf
}

// Encode writes e to w as a container.
func Encode(w io.Writer, e *Entry, opts Options) error {
	payload := e.payload()
	if len(payload) > maxPayload {
		return fmt.Errorf("shadercache: payload of %d bytes exceeds %d", len(payload), maxPayload)
	}

	header := make([]byte, 0, headerSize)
	header = append(header, magic[:]...)
	header = binary.LittleEndian.AppendUint16(header, FormatVersion)
	header = append(header, byte(opts.Codec), 0)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}

	switch opts.Codec {
	case CodecNone:
		_, err := w.Write(payload)
		return err
	case CodecLZ4:
		zw := lz4.NewWriter(w)
		if _, err := zw.Write(payload); err != nil {
			return fmt.Errorf("shadercache: lz4: %w", err)
		}
		return zw.Close()
	case CodecXZ:
		zw, err := xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("shadercache: xz: %w", err)
		}
		if _, err := zw.Write(payload); err != nil {
			return fmt.Errorf("shadercache: xz: %w", err)
		}
		return zw.Close()
	default:
		return fmt.Errorf("shadercache: unknown codec %s", opts.Codec)
	}
}

// Decode reads a container written by Encode.
func Decode(r io.Reader) (*Entry, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalid, err)
	}
	if !bytes.Equal(header[:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalid, header[:4])
	}
	if v := binary.LittleEndian.Uint16(header[4:]); v != FormatVersion {
		return nil, fmt.Errorf("%w: format version %d", ErrInvalid, v)
	}
	codec := Codec(header[6])
	length := binary.LittleEndian.Uint32(header[8:])
	if length > maxPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes", ErrInvalid, length)
	}

	var src io.Reader
	switch codec {
	case CodecNone:
		src = r
	case CodecLZ4:
		src = lz4.NewReader(r)
	case CodecXZ:
		zr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: xz: %v", ErrInvalid, err)
		}
		src = zr
	default:
		return nil, fmt.Errorf("%w: codec %d", ErrInvalid, uint8(codec))
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(src, payload); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrInvalid, codec, err)
	}
	return parsePayload(payload)
}

func parsePayload(p []byte) (*Entry, error) {
	field := func() ([]byte, error) {
		if len(p) < 4 {
			return nil, fmt.Errorf("%w: truncated payload", ErrInvalid)
		}
		n := binary.LittleEndian.Uint32(p)
		p = p[4:]
		if uint64(n) > uint64(len(p)) {
			return nil, fmt.Errorf("%w: field of %d bytes overruns payload", ErrInvalid, n)
		}
		b := p[:n:n]
		p = p[n:]
		return b, nil
	}

	if len(p) < 4 {
		return nil, fmt.Errorf("%w: truncated payload", ErrInvalid)
	}
	e := &Entry{Stage: spirv.ExecutionModel(binary.LittleEndian.Uint32(p))}
	p = p[4:]

	var err error
	if e.Bytecode, err = field(); err != nil {
		return nil, err
	}
	if e.Reflection, err = field(); err != nil {
		return nil, err
	}
	if len(p) != 0 {
		return nil, fmt.Errorf("%w: %d trailing payload bytes", ErrInvalid, len(p))
	}
	return e, nil
}
