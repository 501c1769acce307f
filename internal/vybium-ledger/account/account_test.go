package account

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

func testKey(t *testing.T, b byte) *PrivateKey {
	t.Helper()
	k, err := NewPrivateKey(bytes.NewReader(bytes.Repeat([]byte{b}, SeedSize)))
	if err != nil {
		t.Fatalf("NewPrivateKey: %v", err)
	}
	return k
}

func TestPrivateKeyStringRoundTrip(t *testing.T) {
	k := testKey(t, 7)

	s := k.String()
	if !strings.HasPrefix(s, privateKeyPrefix) {
		t.Fatalf("unexpected prefix in %q", s)
	}
	parsed, err := ParsePrivateKey(s)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if !parsed.Equal(k) {
		t.Fatalf("key changed across string round trip")
	}
	if parsed.Address() != k.Address() {
		t.Fatalf("address changed across string round trip")
	}
}

func TestAddressStringRoundTrip(t *testing.T) {
	a := testKey(t, 1).Address()
	parsed, err := ParseAddress(a.String())
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if parsed != a {
		t.Fatalf("address changed across string round trip")
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "vy1", "vy10OIl", "xx1abc", testKey(t, 2).String()} {
		if _, err := ParseAddress(s); !errors.Is(err, errs.ErrParse) {
			t.Fatalf("ParseAddress(%q): expected parse error, got %v", s, err)
		}
	}
	if _, err := ParsePrivateKey("VPrivateKey1abc"); !errors.Is(err, errs.ErrParse) {
		t.Fatalf("expected short private key to fail, got %v", err)
	}
}

func TestDerivedMaterialIsIndependent(t *testing.T) {
	k := testKey(t, 3)
	view := k.ViewElements()
	tag := k.TagElements()
	same := len(view) == len(tag)
	for i := 0; same && i < len(view); i++ {
		same = view[i].Equal(tag[i])
	}
	if same {
		t.Fatalf("view and tag seeds must differ")
	}
	if testKey(t, 4).Address() == k.Address() {
		t.Fatalf("different seeds produced the same address")
	}
}

func TestSignVerify(t *testing.T) {
	k := testKey(t, 5)
	msg := []byte("transfer")
	sig := k.Sign(msg)
	if !k.Address().Verify(msg, sig) {
		t.Fatalf("signature does not verify")
	}
	if k.Address().Verify([]byte("transfeR"), sig) {
		t.Fatalf("signature verified a different message")
	}
	if testKey(t, 6).Address().Verify(msg, sig) {
		t.Fatalf("signature verified under a different address")
	}
	if k.Address().Verify(msg, sig[:10]) {
		t.Fatalf("short signature verified")
	}
}

func TestPrivateKeyFromSeed(t *testing.T) {
	a, err := PrivateKeyFromSeed("correct horse")
	if err != nil {
		t.Fatalf("PrivateKeyFromSeed: %v", err)
	}
	b, err := PrivateKeyFromSeed("  correct horse\n")
	if err != nil {
		t.Fatalf("PrivateKeyFromSeed: %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("surrounding whitespace changed the key")
	}

	// U+212B ANGSTROM SIGN normalizes to U+00C5.
	c, err := PrivateKeyFromSeed("\u212b")
	if err != nil {
		t.Fatalf("PrivateKeyFromSeed: %v", err)
	}
	d, err := PrivateKeyFromSeed("\u00c5")
	if err != nil {
		t.Fatalf("PrivateKeyFromSeed: %v", err)
	}
	if !c.Equal(d) {
		t.Fatalf("equivalent unicode seeds produced different keys")
	}

	if _, err := PrivateKeyFromSeed("   "); !errors.Is(err, errs.ErrParse) {
		t.Fatalf("expected empty seed to fail, got %v", err)
	}
}

func TestMnemonicRestore(t *testing.T) {
	mnemonic, key, err := NewMnemonic()
	if err != nil {
		t.Fatalf("NewMnemonic: %v", err)
	}
	if n := len(strings.Fields(mnemonic)); n != 24 {
		t.Fatalf("mnemonic has %d words, want 24", n)
	}
	restored, err := PrivateKeyFromMnemonic("  "+strings.ReplaceAll(mnemonic, " ", "  ")+" ", "")
	if err != nil {
		t.Fatalf("PrivateKeyFromMnemonic: %v", err)
	}
	if !restored.Equal(key) {
		t.Fatalf("mnemonic restored a different key")
	}
	if _, err := PrivateKeyFromMnemonic("not a mnemonic", ""); !errors.Is(err, errs.ErrParse) {
		t.Fatalf("expected invalid mnemonic to fail, got %v", err)
	}
}

func BenchmarkPrivateKeyFromSeed(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := PrivateKeyFromSeed("benchmark seed"); err != nil {
			b.Fatal(err)
		}
	}
}
