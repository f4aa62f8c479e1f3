package main

import (
	"testing"

	"github.com/mirrorx/endpoint/internal/wire"
)

func TestParseCodecsOrderPreserved(t *testing.T) {
	codecs, err := parseCodecs([]string{"vp9", "h264"})
	if err != nil {
		t.Fatal(err)
	}
	if len(codecs) != 2 || codecs[0] != wire.CodecVP9 || codecs[1] != wire.CodecH264 {
		t.Fatalf("unexpected codecs: %v", codecs)
	}
}

func TestParseCodecsRejectsUnknown(t *testing.T) {
	if _, err := parseCodecs([]string{"theora"}); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}

func TestParseSampleFormats(t *testing.T) {
	formats, err := parseSampleFormats([]string{"f32", "i16"})
	if err != nil {
		t.Fatal(err)
	}
	if len(formats) != 2 || formats[0] != wire.SampleFormatF32 || formats[1] != wire.SampleFormatI16 {
		t.Fatalf("unexpected formats: %v", formats)
	}
}

func TestParseSampleFormatsRejectsUnknown(t *testing.T) {
	if _, err := parseSampleFormats([]string{"opus"}); err == nil {
		t.Fatal("expected error for unknown sample format")
	}
}
