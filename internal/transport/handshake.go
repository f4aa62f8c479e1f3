package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// PeerIDLen is the fixed width of a peer identifier: 10-character ASCII,
// zero-padded numeric (spec §3).
const PeerIDLen = 10

const handshakeTimeout = 60 * time.Second

var (
	ErrBadPeerID        = errors.New("transport: peer id must be exactly 10 bytes")
	ErrHandshakeRejected = errors.New("transport: passive peer rejected handshake")
)

// acceptByte is the single-byte handshake accept response; any other byte
// is a rejection.
const (
	acceptByte = 0x01
)

// ValidatePeerID checks the fixed-width zero-padded numeric id shape.
func ValidatePeerID(id string) error {
	if len(id) != PeerIDLen {
		return fmt.Errorf("%w: got %d bytes", ErrBadPeerID, len(id))
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: non-digit in %q", ErrBadPeerID, id)
		}
	}
	return nil
}

// DialActive performs the active side of the handshake prelude: write the
// 20-byte (active id, passive id) pair, then read the single accept/reject
// byte, honoring the 60s deadline. On acceptance it returns a Transport
// ready for framed/sealed traffic.
func DialActive(ctx context.Context, addr string, activeID, passiveID string, keys KeyPair) (*Transport, error) {
	if err := ValidatePeerID(activeID); err != nil {
		return nil, err
	}
	if err := ValidatePeerID(passiveID); err != nil {
		return nil, err
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial: %w", err)
	}

	if err := writeHandshakePrelude(conn, activeID, passiveID); err != nil {
		conn.Close()
		return nil, err
	}

	if err := readHandshakeResponse(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return New(conn, keys)
}

// AcceptPassive performs the passive side: read the 20-byte prelude,
// verify ownID appears in the passive slot, and write the accept/reject
// byte. On rejection the connection is closed and an error is returned.
func AcceptPassive(conn net.Conn, ownID string, keys KeyPair) (activePeerID string, t *Transport, err error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var prelude [2 * PeerIDLen]byte
	if _, err := io.ReadFull(conn, prelude[:]); err != nil {
		conn.Close()
		return "", nil, fmt.Errorf("transport: read handshake prelude: %w", err)
	}

	activeID := string(prelude[:PeerIDLen])
	passiveID := string(prelude[PeerIDLen:])

	if passiveID != ownID {
		writeRejectByte(conn)
		conn.Close()
		return "", nil, fmt.Errorf("transport: handshake passive id %q does not match local id %q", passiveID, ownID)
	}

	if _, err := conn.Write([]byte{acceptByte}); err != nil {
		conn.Close()
		return "", nil, fmt.Errorf("transport: write handshake accept: %w", err)
	}

	tr, err := New(conn, keys)
	if err != nil {
		conn.Close()
		return "", nil, err
	}
	return activeID, tr, nil
}

func writeHandshakePrelude(conn net.Conn, activeID, passiveID string) error {
	var prelude [2 * PeerIDLen]byte
	copy(prelude[:PeerIDLen], activeID)
	copy(prelude[PeerIDLen:], passiveID)
	if _, err := conn.Write(prelude[:]); err != nil {
		return fmt.Errorf("transport: write handshake prelude: %w", err)
	}
	return nil
}

func readHandshakeResponse(conn net.Conn) error {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var resp [1]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return fmt.Errorf("transport: read handshake response: %w", err)
	}
	if resp[0] != acceptByte {
		return ErrHandshakeRejected
	}
	return nil
}

func writeRejectByte(conn net.Conn) {
	conn.Write([]byte{0x00})
}
