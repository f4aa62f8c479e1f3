package filetransfer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mirrorx/endpoint/internal/mux"
	"github.com/mirrorx/endpoint/internal/wire"
	"github.com/mirrorx/endpoint/internal/workerpool"
)

func TestValidatePathRejectsTraversal(t *testing.T) {
	if _, err := validatePath("../../etc/passwd"); !errors.Is(err, ErrPathTraversal) {
		t.Fatalf("expected ErrPathTraversal, got %v", err)
	}
}

func TestValidatePathRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, err := validatePath(dir); !errors.Is(err, ErrNotRegularFile) {
		t.Fatalf("expected ErrNotRegularFile, got %v", err)
	}
}

func TestDownloadEndToEnd(t *testing.T) {
	orig := SettleDelay
	SettleDelay = 10 * time.Millisecond
	defer func() { SettleDelay = orig }()

	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	content := bytes.Repeat([]byte{0xAB}, 3*1024*1024+17) // spans multiple chunks
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	pool := workerpool.New(4, 16)
	defer pool.Drain(context.Background())

	serverToClient := make(chan wire.Envelope, 256)
	clientToServer := make(chan wire.Envelope, 256)

	var serverMux, clientMux *mux.Mux
	serverMux = mux.New(sendFunc(func(e wire.Envelope) error { serverToClient <- e; return nil }), pool)
	clientMux = mux.New(sendFunc(func(e wire.Envelope) error { clientToServer <- e; return nil }), pool)

	go pump(clientToServer, serverMux)
	go pump(serverToClient, clientMux)

	Serve(serverMux)
	client := NewClient(clientMux)

	dl, err := client.Download(context.Background(), "xfer-1", path)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if dl.Size != uint64(len(content)) {
		t.Fatalf("expected size %d, got %d", len(content), dl.Size)
	}

	var buf bytes.Buffer
	n, err := dl.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n != int64(len(content)) {
		t.Fatalf("expected %d bytes written, got %d", len(content), n)
	}
	if !bytes.Equal(buf.Bytes(), content) {
		t.Fatal("downloaded content mismatch")
	}
}

func TestDownloadMissingFileIsRejected(t *testing.T) {
	pool := workerpool.New(2, 8)
	defer pool.Drain(context.Background())

	serverToClient := make(chan wire.Envelope, 16)
	clientToServer := make(chan wire.Envelope, 16)

	var serverMux, clientMux *mux.Mux
	serverMux = mux.New(sendFunc(func(e wire.Envelope) error { serverToClient <- e; return nil }), pool)
	clientMux = mux.New(sendFunc(func(e wire.Envelope) error { clientToServer <- e; return nil }), pool)

	go pump(clientToServer, serverMux)
	go pump(serverToClient, clientMux)

	Serve(serverMux)
	client := NewClient(clientMux)

	if _, err := client.Download(context.Background(), "xfer-2", "/no/such/path"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestDownloadOutsideAllowlistIsRejected(t *testing.T) {
	allowedDir := t.TempDir()
	otherDir := t.TempDir()
	path := filepath.Join(otherDir, "payload.bin")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	pool := workerpool.New(2, 8)
	defer pool.Drain(context.Background())

	serverToClient := make(chan wire.Envelope, 16)
	clientToServer := make(chan wire.Envelope, 16)

	var serverMux, clientMux *mux.Mux
	serverMux = mux.New(sendFunc(func(e wire.Envelope) error { serverToClient <- e; return nil }), pool)
	clientMux = mux.New(sendFunc(func(e wire.Envelope) error { clientToServer <- e; return nil }), pool)

	go pump(clientToServer, serverMux)
	go pump(serverToClient, clientMux)

	ServeWithAllowlist(serverMux, []string{allowedDir})
	client := NewClient(clientMux)

	if _, err := client.Download(context.Background(), "xfer-3", path); err == nil {
		t.Fatal("expected path outside allowlist to be rejected")
	}
}

type sendFunc func(wire.Envelope) error

func (f sendFunc) Send(e wire.Envelope) error { return f(e) }

func pump(ch chan wire.Envelope, m *mux.Mux) {
	for e := range ch {
		m.Dispatch(context.Background(), e)
	}
}
