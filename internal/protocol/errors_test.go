package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrOutOfBounds,
		ErrRateLimit,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"CHUNK_REQ","protocol_version":"1.0","cx":1}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if m.Type != TypeChunkReq || m.ProtocolVersion != Version {
		t.Fatalf("unexpected base: %+v", m)
	}
	if _, err := DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed input")
	}
}
