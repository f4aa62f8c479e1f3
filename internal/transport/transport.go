// Package transport implements the length-delimited, AEAD-sealed framing
// layer over TCP (spec §4.1) and the pre-framing handshake prelude (§4.2).
package transport

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mirrorx/endpoint/internal/logging"
	"github.com/mirrorx/endpoint/internal/nonce"
)

var log = logging.L("transport")

const (
	// MaxFrameLen is the maximum sealed-payload length. A longer frame is a
	// Transport error and is fatal to the session.
	MaxFrameLen = 16 * 1024 * 1024

	lengthPrefixSize = 4
)

var (
	ErrFrameTooLarge = errors.New("transport: frame exceeds 16 MiB limit")
	ErrOpenFailed    = errors.New("transport: AEAD open failed")
	ErrClosed        = errors.New("transport: closed")
)

// KeyPair is the (opening key, sealing key) a session receives from
// signaling. Each key is single-use per session (spec §3).
type KeyPair struct {
	OpeningKey [chacha20poly1305.KeySize]byte
	SealingKey [chacha20poly1305.KeySize]byte
}

// Transport wraps one TCP connection with independent seal/open halves,
// each bound to its own nonce sequencer (spec §5: "Keys and nonce
// sequencers are owned exclusively by their direction's task").
type Transport struct {
	conn net.Conn

	sealAEAD cipher.AEAD
	openAEAD cipher.AEAD
	sealSeq  *nonce.Sequencer
	openSeq  *nonce.Sequencer
}

// New constructs a Transport over an already-connected TCP socket, after
// the handshake prelude has completed. Both sequencers start at zero
// per-session (spec §9 Open Question on nonce initialization).
func New(conn net.Conn, keys KeyPair) (*Transport, error) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	sealAEAD, err := chacha20poly1305.New(keys.SealingKey[:])
	if err != nil {
		return nil, fmt.Errorf("transport: sealing cipher: %w", err)
	}
	openAEAD, err := chacha20poly1305.New(keys.OpeningKey[:])
	if err != nil {
		return nil, fmt.Errorf("transport: opening cipher: %w", err)
	}

	return &Transport{
		conn:     conn,
		sealAEAD: sealAEAD,
		openAEAD: openAEAD,
		sealSeq:  nonce.New(),
		openSeq:  nonce.New(),
	}, nil
}

// WriteFrame seals plaintext with the next outbound nonce and writes the
// length-prefixed sealed frame. Single-threaded per direction (§4.1); the
// writer task is the only caller (§5).
func (t *Transport) WriteFrame(plaintext []byte) error {
	n, err := t.sealSeq.Next()
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}

	sealed := t.sealAEAD.Seal(nil, n[:], plaintext, nil)
	if len(sealed) > MaxFrameLen {
		return ErrFrameTooLarge
	}

	var header [lengthPrefixSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(sealed)))

	if _, err := t.conn.Write(header[:]); err != nil {
		return fmt.Errorf("transport: write header: %w", err)
	}
	if _, err := t.conn.Write(sealed); err != nil {
		return fmt.Errorf("transport: write body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed sealed frame and opens it with the
// next inbound nonce. Single-threaded per direction; the reader task is the
// only caller.
func (t *Transport) ReadFrame() ([]byte, error) {
	var header [lengthPrefixSize]byte
	if _, err := io.ReadFull(t.conn, header[:]); err != nil {
		return nil, fmt.Errorf("transport: read header: %w", err)
	}

	frameLen := binary.LittleEndian.Uint32(header[:])
	if frameLen > MaxFrameLen {
		return nil, ErrFrameTooLarge
	}

	sealed := make([]byte, frameLen)
	if _, err := io.ReadFull(t.conn, sealed); err != nil {
		return nil, fmt.Errorf("transport: read body: %w", err)
	}

	n, err := t.openSeq.Next()
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	plaintext, err := t.openAEAD.Open(nil, n[:], sealed, nil)
	if err != nil {
		log.Warn("AEAD open failed, session is fatal", logging.KeyError, err)
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

// Close releases the underlying socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// RemoteAddr returns the peer network address, for logging.
func (t *Transport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
