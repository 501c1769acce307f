package utils

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
)

// TestNewChannel tests creating a new channel
func TestNewChannel(t *testing.T) {
	tests := []struct {
		name         string
		hashFunc     string
		expectedHash string
	}{
		{"default (empty string)", "", HashSHA3},
		{"sha256", HashSHA256, HashSHA256},
		{"blake2b", HashBlake2b, HashBlake2b},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewChannel(tt.hashFunc)
			if ch.hashFunc != tt.expectedHash {
				t.Errorf("Expected hash function %s, got %s", tt.expectedHash, ch.hashFunc)
			}
			if len(ch.state) == 0 {
				t.Error("Channel state not initialized")
			}
		})
	}
}

// TestChannelDeterminism tests that identical transcripts draw identical challenges
func TestChannelDeterminism(t *testing.T) {
	d := core.HashElements("test", field.New(1))
	run := func() (*Channel, []int) {
		ch := NewChannel("")
		ch.SendDigest("root", d)
		ch.SendElements("inputs", []field.Element{field.New(2), field.New(3)})
		var idx []int
		for i := 0; i < 8; i++ {
			idx = append(idx, ch.ReceiveIndex(10))
		}
		return ch, idx
	}
	a, ia := run()
	b, ib := run()
	if !bytes.Equal(a.state, b.state) {
		t.Fatal("same transcript produced different states")
	}
	for i := range ia {
		if ia[i] != ib[i] {
			t.Fatalf("challenge %d differs: %d vs %d", i, ia[i], ib[i])
		}
		if ia[i] < 0 || ia[i] >= 10 {
			t.Fatalf("index %d out of range", ia[i])
		}
	}
}

// TestChannelLabels tests that labels separate equal payloads
func TestChannelLabels(t *testing.T) {
	a := NewChannel("")
	b := NewChannel("")
	a.SendLabeled("x", []byte("payload"))
	b.SendLabeled("y", []byte("payload"))
	if bytes.Equal(a.state, b.state) {
		t.Fatal("labels did not separate the transcripts")
	}
}

// TestReceiveRandomInt tests range handling
func TestReceiveRandomInt(t *testing.T) {
	ch := NewChannel(HashSHA256)
	ch.Send([]byte("seed"))
	if got := ch.ReceiveRandomInt(big.NewInt(5), big.NewInt(1)); got != nil {
		t.Fatalf("expected nil for an empty range, got %v", got)
	}
	for i := 0; i < 16; i++ {
		v := ch.ReceiveRandomInt(big.NewInt(3), big.NewInt(7))
		if v.Cmp(big.NewInt(3)) < 0 || v.Cmp(big.NewInt(7)) > 0 {
			t.Fatalf("value %v out of range", v)
		}
	}
	e := ch.ReceiveElement()
	if e.Value() >= field.P {
		t.Fatalf("element %d is not canonical", e.Value())
	}
	before := append([]byte(nil), ch.state...)
	ch.ReceiveElement()
	if bytes.Equal(before, ch.state) {
		t.Fatal("drawing a challenge did not advance the state")
	}
}
