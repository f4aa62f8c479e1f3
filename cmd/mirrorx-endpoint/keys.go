package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/mirrorx/endpoint/internal/transport"
)

// loadKeyPair decodes the --open-key/--seal-key flags into a
// transport.KeyPair. Key exchange itself is signaling's job (spec §3, out
// of scope here); when no keys are supplied this generates a random local
// pair so the command can still be exercised without a signaling server,
// logging loudly that the session will only be readable by itself.
func loadKeyPair() (transport.KeyPair, error) {
	var kp transport.KeyPair

	if openKeyHex == "" && sealKeyHex == "" {
		if _, err := rand.Read(kp.OpeningKey[:]); err != nil {
			return kp, fmt.Errorf("generate opening key: %w", err)
		}
		if _, err := rand.Read(kp.SealingKey[:]); err != nil {
			return kp, fmt.Errorf("generate sealing key: %w", err)
		}
		log.Warn("no --open-key/--seal-key supplied, generated an ephemeral local pair; the remote peer must use matching keys delivered out-of-band")
		return kp, nil
	}

	open, err := hex.DecodeString(openKeyHex)
	if err != nil || len(open) != chacha20poly1305.KeySize {
		return kp, fmt.Errorf("--open-key must be %d hex-encoded bytes", chacha20poly1305.KeySize)
	}
	seal, err := hex.DecodeString(sealKeyHex)
	if err != nil || len(seal) != chacha20poly1305.KeySize {
		return kp, fmt.Errorf("--seal-key must be %d hex-encoded bytes", chacha20poly1305.KeySize)
	}
	copy(kp.OpeningKey[:], open)
	copy(kp.SealingKey[:], seal)
	return kp, nil
}
