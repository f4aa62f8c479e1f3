package main

import (
	"fmt"
	"strings"

	"github.com/mirrorx/endpoint/internal/wire"
)

func parseCodecs(names []string) ([]wire.Codec, error) {
	out := make([]wire.Codec, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(n) {
		case "h264":
			out = append(out, wire.CodecH264)
		case "hevc":
			out = append(out, wire.CodecHEVC)
		case "vp8":
			out = append(out, wire.CodecVP8)
		case "vp9":
			out = append(out, wire.CodecVP9)
		default:
			return nil, fmt.Errorf("unknown codec %q", n)
		}
	}
	return out, nil
}

func parseSampleFormats(names []string) ([]wire.SampleFormat, error) {
	out := make([]wire.SampleFormat, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(n) {
		case "i16":
			out = append(out, wire.SampleFormatI16)
		case "f32":
			out = append(out, wire.SampleFormatF32)
		default:
			return nil, fmt.Errorf("unknown sample format %q", n)
		}
	}
	return out, nil
}
