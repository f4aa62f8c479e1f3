package transport

import (
	"bytes"
	"net"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func testKeyPairs() (clientKeys, serverKeys KeyPair) {
	var a, b [chacha20poly1305.KeySize]byte
	for i := range a {
		a[i] = byte(i + 1)
	}
	for i := range b {
		b[i] = byte(255 - i)
	}
	// Client seals with a, opens with b; server is the mirror image.
	clientKeys = KeyPair{SealingKey: a, OpeningKey: b}
	serverKeys = KeyPair{SealingKey: b, OpeningKey: a}
	return
}

func TestSealOpenRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientKeys, serverKeys := testKeyPairs()
	client, err := New(clientConn, clientKeys)
	if err != nil {
		t.Fatal(err)
	}
	server, err := New(serverConn, serverKeys)
	if err != nil {
		t.Fatal(err)
	}

	want := []byte("hello mirrorx")
	errCh := make(chan error, 1)
	go func() { errCh <- client.WriteFrame(want) }()

	got, err := server.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNonceMismatchFailsOpen(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientKeys, serverKeys := testKeyPairs()
	client, err := New(clientConn, clientKeys)
	if err != nil {
		t.Fatal(err)
	}
	server, err := New(serverConn, serverKeys)
	if err != nil {
		t.Fatal(err)
	}

	// Advance the client's sealing sequencer past what the server expects,
	// simulating an injected/skipped-ahead frame (§8 scenario 3).
	client.sealSeq.Next()

	errCh := make(chan error, 1)
	go func() { errCh <- client.WriteFrame([]byte("skip")) }()

	_, err = server.ReadFrame()
	if err != ErrOpenFailed {
		t.Fatalf("expected ErrOpenFailed, got %v", err)
	}
	<-errCh
}

func TestFrameTooLarge(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientKeys, _ := testKeyPairs()
	client, err := New(clientConn, clientKeys)
	if err != nil {
		t.Fatal(err)
	}

	huge := make([]byte, MaxFrameLen+1)
	if err := client.WriteFrame(huge); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestValidatePeerID(t *testing.T) {
	valid := []string{"0000000001", "9999999999", "0000000000"}
	for _, id := range valid {
		if err := ValidatePeerID(id); err != nil {
			t.Errorf("expected %q valid, got %v", id, err)
		}
	}

	invalid := []string{"1", "00000000001", "abcdefghij", ""}
	for _, id := range invalid {
		if err := ValidatePeerID(id); err == nil {
			t.Errorf("expected %q invalid", id)
		}
	}
}

func TestHandshakeAcceptRejectsWrongPassiveID(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	go func() {
		writeHandshakePrelude(clientConn, "0000000001", "0000000002")
		var resp [1]byte
		clientConn.Read(resp[:])
	}()

	_, _, err := AcceptPassive(serverConn, "0000000099", KeyPair{})
	if err == nil {
		t.Fatal("expected rejection for mismatched passive id")
	}
}
