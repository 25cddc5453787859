package shadercache

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gogpu/spvkit/reflection"
	"github.com/gogpu/spvkit/spirv"
)

func testEntry(t *testing.T) *Entry {
	t.Helper()

	b := spirv.NewModuleBuilder(spirv.Version1_3)
	b.AddCapability(spirv.CapabilityShader)
	b.SetMemoryModel(spirv.AddressingModelLogical, spirv.MemoryModelGLSL450)
	void := b.AddTypeVoid()
	fn := b.AddFunction(b.AddTypeFunction(void), void, spirv.FunctionControlNone)
	b.AddLabel()
	b.AddReturn()
	b.AddFunctionEnd()
	b.AddEntryPoint(spirv.ExecutionModelFragment, fn, "main", nil)
	b.AddExecutionMode(fn, spirv.ExecutionModeOriginUpperLeft)

	res := &reflection.Resources{
		Outputs: []reflection.Attribute{{Location: 0, Format: reflection.FormatR32G32B32A32SFloat, Name: "outColor"}},
	}
	stream, err := res.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	return &Entry{Stage: spirv.ExecutionModelFragment, Bytecode: b.Build(), Reflection: stream}
}

func TestRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecXZ} {
		t.Run(codec.String(), func(t *testing.T) {
			want := testEntry(t)

			var buf bytes.Buffer
			if err := Encode(&buf, want, Options{Codec: codec}); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if got := buf.Bytes()[6]; Codec(got) != codec {
				t.Errorf("header codec = %d", got)
			}

			got, err := Decode(&buf)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Stage != want.Stage {
				t.Errorf("Stage = %v, want %v", got.Stage, want.Stage)
			}
			if !bytes.Equal(got.Bytecode, want.Bytecode) {
				t.Error("bytecode differs")
			}
			if !bytes.Equal(got.Reflection, want.Reflection) {
				t.Error("reflection differs")
			}

			m, err := got.Module()
			if err != nil {
				t.Fatalf("Module: %v", err)
			}
			if m.Version() != spirv.Version1_3 {
				t.Errorf("module version = %v", m.Version())
			}
			res, err := got.Resources()
			if err != nil {
				t.Fatalf("Resources: %v", err)
			}
			if len(res.Outputs) != 1 || res.Outputs[0].Name != "outColor" {
				t.Errorf("resources = %+v", res)
			}
		})
	}
}

func TestCompression(t *testing.T) {
	e := &Entry{Bytecode: bytes.Repeat([]byte{0x03, 0x02, 0x23, 0x07}, 4096)}

	var plain bytes.Buffer
	if err := Encode(&plain, e, Options{Codec: CodecNone}); err != nil {
		t.Fatal(err)
	}
	for _, codec := range []Codec{CodecLZ4, CodecXZ} {
		var buf bytes.Buffer
		if err := Encode(&buf, e, Options{Codec: codec}); err != nil {
			t.Fatalf("%s: %v", codec, err)
		}
		if buf.Len() >= plain.Len()/4 {
			t.Errorf("%s container is %d bytes, stored is %d", codec, buf.Len(), plain.Len())
		}
	}
}

func TestDecode_Invalid(t *testing.T) {
	var good bytes.Buffer
	if err := Encode(&good, testEntry(t), Options{Codec: CodecNone}); err != nil {
		t.Fatal(err)
	}
	valid := good.Bytes()

	corrupt := func(i int, b byte) []byte {
		data := bytes.Clone(valid)
		data[i] = b
		return data
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:8]},
		{"bad magic", corrupt(0, 'X')},
		{"future version", corrupt(4, 9)},
		{"unknown codec", corrupt(6, 7)},
		{"truncated payload", valid[:len(valid)-3]},
		{"length past payload", corrupt(10, 1)},
		{"lz4 garbage", append(corrupt(6, byte(CodecLZ4))[:headerSize], 1, 2, 3, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(bytes.NewReader(tt.data)); !errors.Is(err, ErrInvalid) {
				t.Errorf("Decode error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestParsePayload_Trailing(t *testing.T) {
	p := append(testEntry(t).payload(), 0)
	if _, err := parsePayload(p); !errors.Is(err, ErrInvalid) {
		t.Errorf("error = %v, want ErrInvalid", err)
	}
}

func TestParseCodec(t *testing.T) {
	for _, c := range []Codec{CodecNone, CodecLZ4, CodecXZ} {
		if got, err := ParseCodec(c.String()); err != nil || got != c {
			t.Errorf("ParseCodec(%q) = %v, %v", c.String(), got, err)
		}
	}
	if _, err := ParseCodec("zstd"); err == nil {
		t.Error("ParseCodec accepted zstd")
	}
	if DefaultOptions().Codec != CodecLZ4 {
		t.Error("default codec is not lz4")
	}
}
