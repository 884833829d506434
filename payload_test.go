package aidefense

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPayloadBytes(t *testing.T) {
	tests := []struct {
		name    string
		body    any
		want    []byte
		wantErr bool
	}{
		{
			name: "nil body",
			body: nil,
			want: nil,
		},
		{
			name: "string becomes its UTF-8 bytes",
			body: "héllo",
			want: []byte("héllo"),
		},
		{
			name: "byte slice passes through",
			body: []byte{0x00, 0xff, 0x10},
			want: []byte{0x00, 0xff, 0x10},
		},
		{
			name: "raw JSON passes through",
			body: json.RawMessage(`{"a":1}`),
			want: []byte(`{"a":1}`),
		},
		{
			name: "structured value is serialized",
			body: map[string]int{"a": 1},
			want: []byte(`{"a":1}`),
		},
		{
			name:    "unserializable value",
			body:    func() {},
			wantErr: true,
		},
		{
			name:    "channel value",
			body:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := payloadBytes("body", tt.body)
			if tt.wantErr {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPayloadBytes_TextIdempotence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "s")

		first, err := payloadBytes("body", s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := payloadBytes("body", s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Encoding the same logical body twice yields byte-identical wire
		// output.
		if base64.StdEncoding.EncodeToString(first) != base64.StdEncoding.EncodeToString(second) {
			t.Fatalf("encoding is not deterministic for %q", s)
		}

		// Round trip: decoding the wire form recovers the original content.
		decoded, err := base64.StdEncoding.DecodeString(base64.StdEncoding.EncodeToString(first))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(decoded) != s {
			t.Fatalf("round trip lost content: %q != %q", decoded, s)
		}
	})
}

func TestPayloadBytes_BinaryRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOf(rapid.Byte()).Draw(t, "raw")

		got, err := payloadBytes("body", raw)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wire := base64.StdEncoding.EncodeToString(got)
		decoded, err := base64.StdEncoding.DecodeString(wire)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(decoded) != string(raw) {
			t.Fatalf("round trip lost bytes")
		}
	})
}

func TestPayloadBytes_StructuredRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		value := rapid.MapOf(rapid.String(), rapid.Int()).Draw(t, "value")

		first, err := payloadBytes("body", value)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := payloadBytes("body", value)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(first) != string(second) {
			t.Fatalf("serialization is not deterministic")
		}

		var decoded map[string]int
		if err := json.Unmarshal(first, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(decoded) != len(value) {
			t.Fatalf("round trip lost entries: %d != %d", len(decoded), len(value))
		}
		for k, v := range value {
			if decoded[k] != v {
				t.Fatalf("round trip changed %q: %d != %d", k, decoded[k], v)
			}
		}
	})
}

func TestCoerceString(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    string
		wantErr bool
	}{
		{name: "string", value: "hello", want: "hello"},
		{name: "int", value: 42, want: "42"},
		{name: "float", value: 1.5, want: "1.5"},
		{name: "bool", value: true, want: "true"},
		{name: "stringer", value: RegionEU, want: "eu"},
		{name: "map", value: map[string]int{"a": 1}, want: `{"a":1}`},
		{name: "slice", value: []string{"a", "b"}, want: `["a","b"]`},
		{name: "function", value: func() {}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceString("field", tt.value)
			if tt.wantErr {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetadataMarshal(t *testing.T) {
	meta := Metadata{User: "jdoe"}
	require.NoError(t, meta.SetExtra("tier", "gold"))
	// A key colliding with a named field is dropped, not overwritten.
	require.NoError(t, meta.SetExtra("user", "intruder"))

	raw, err := json.Marshal(meta)
	require.NoError(t, err)

	var wire map[string]string
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "jdoe", wire["user"])
	assert.Equal(t, "gold", wire["tier"])
	assert.NotContains(t, wire, "src_app")
}
