package recording

import (
	"context"
	"strings"
	"testing"
)

func TestDisabledArchiverIsNoOp(t *testing.T) {
	a, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Enabled() {
		t.Fatal("expected archiver to be disabled with no bucket configured")
	}
	if err := a.Archive(context.Background(), "xfer-1", "/does/not/matter"); err != nil {
		t.Fatalf("expected Archive to no-op, got %v", err)
	}
}

func TestObjectKeyIncludesPrefixAndTransferID(t *testing.T) {
	a := &Archiver{cfg: Config{Bucket: "b", Prefix: "recordings"}}
	key := a.objectKey("xfer-42", "/tmp/payload.bin")
	if !strings.Contains(key, "recordings/") {
		t.Fatalf("expected prefix in key, got %q", key)
	}
	if !strings.Contains(key, "xfer-42") {
		t.Fatalf("expected transfer id in key, got %q", key)
	}
	if !strings.Contains(key, "payload.bin") {
		t.Fatalf("expected file name in key, got %q", key)
	}
}

func TestObjectKeyWithoutPrefix(t *testing.T) {
	a := &Archiver{cfg: Config{Bucket: "b"}}
	key := a.objectKey("xfer-1", "/tmp/payload.bin")
	if strings.Contains(key, "//") {
		t.Fatalf("unexpected double slash in key: %q", key)
	}
}
