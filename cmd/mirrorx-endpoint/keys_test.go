package main

import (
	"encoding/hex"
	"testing"

	"golang.org/x/crypto/chacha20poly1305"
)

func TestLoadKeyPairGeneratesEphemeralWhenUnset(t *testing.T) {
	openKeyHex, sealKeyHex = "", ""
	defer func() { openKeyHex, sealKeyHex = "", "" }()

	kp, err := loadKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if kp.OpeningKey == kp.SealingKey {
		t.Fatal("expected distinct random opening/sealing keys")
	}
}

func TestLoadKeyPairDecodesHexFlags(t *testing.T) {
	open := make([]byte, chacha20poly1305.KeySize)
	seal := make([]byte, chacha20poly1305.KeySize)
	open[0], seal[0] = 0xAB, 0xCD

	openKeyHex, sealKeyHex = hex.EncodeToString(open), hex.EncodeToString(seal)
	defer func() { openKeyHex, sealKeyHex = "", "" }()

	kp, err := loadKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if kp.OpeningKey[0] != 0xAB || kp.SealingKey[0] != 0xCD {
		t.Fatal("decoded key bytes did not round-trip")
	}
}

func TestLoadKeyPairRejectsBadLength(t *testing.T) {
	openKeyHex, sealKeyHex = "ab", "cd"
	defer func() { openKeyHex, sealKeyHex = "", "" }()

	if _, err := loadKeyPair(); err == nil {
		t.Fatal("expected error for short key")
	}
}
