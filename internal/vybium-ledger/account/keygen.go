package account

import (
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/errs"
)

const seedDomain = "vybium/account/seed/v1"

// PrivateKeyFromSeed derives a key from an arbitrary seed string. The string
// is NFKC-normalized so visually identical seeds map to the same key.
func PrivateKeyFromSeed(seed string) (*PrivateKey, error) {
	seed = norm.NFKC.String(strings.TrimSpace(seed))
	if seed == "" {
		return nil, errs.New(errs.ParseError, "seed is empty")
	}
	h, err := blake2b.New256([]byte(seedDomain))
	if err != nil {
		return nil, err
	}
	h.Write([]byte(seed))
	var raw [SeedSize]byte
	copy(raw[:], h.Sum(nil))
	return PrivateKeyFromSeedBytes(raw)
}

// NewMnemonic generates a 24-word mnemonic and the key it restores to.
func NewMnemonic() (string, *PrivateKey, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", nil, err
	}
	key, err := PrivateKeyFromMnemonic(mnemonic, "")
	if err != nil {
		return "", nil, err
	}
	return mnemonic, key, nil
}

// PrivateKeyFromMnemonic restores a key from a BIP-39 mnemonic.
func PrivateKeyFromMnemonic(mnemonic, passphrase string) (*PrivateKey, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errs.New(errs.ParseError, "invalid mnemonic")
	}
	seedBytes := bip39.NewSeed(mnemonic, passphrase)
	var raw [SeedSize]byte
	copy(raw[:], seedBytes[:SeedSize])
	return PrivateKeyFromSeedBytes(raw)
}
