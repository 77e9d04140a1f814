package dataurl

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	raw := Encode("application/pdf", []byte("%PDF-1.4 body"))
	if raw != "data:application/pdf;base64,JVBERi0xLjQgYm9keQ==" {
		t.Fatalf("Encode() = %q", raw)
	}
	mediaType, data, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if mediaType != "application/pdf" || !bytes.Equal(data, []byte("%PDF-1.4 body")) {
		t.Fatalf("Decode() = %q, %q", mediaType, data)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"application/pdf;base64,AAAA",
		"data:application/pdf;base64",
		"data:text/plain,hello",
		"data:application/pdf;base64,!!!",
	} {
		if _, _, err := Decode(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Decode(%q) error = %v", raw, err)
		}
	}
}
