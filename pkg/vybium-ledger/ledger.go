package vybiumledger

import (
	"crypto/rand"
	"io"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/account"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/authorize"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/codec"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/core"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/ledger"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/process"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/query"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

// DefaultConfig returns the default settings.
func DefaultConfig() *Config {
	return utils.DefaultConfig()
}

// LoadConfig reads a YAML config file and applies VYBIUM_* overrides.
func LoadConfig(path string) (*Config, error) {
	return utils.LoadConfig(path)
}

// NewPrivateKey samples a key from rng, or crypto/rand when rng is nil.
func NewPrivateKey(rng io.Reader) (*PrivateKey, error) {
	if rng == nil {
		rng = rand.Reader
	}
	return account.NewPrivateKey(rng)
}

// PrivateKeyFromSeed derives a key from a seed string.
func PrivateKeyFromSeed(seed string) (*PrivateKey, error) {
	return account.PrivateKeyFromSeed(seed)
}

// PrivateKeyFromMnemonic restores a key from a BIP-39 mnemonic.
func PrivateKeyFromMnemonic(mnemonic, passphrase string) (*PrivateKey, error) {
	return account.PrivateKeyFromMnemonic(mnemonic, passphrase)
}

// ParsePrivateKey parses a private key string.
func ParsePrivateKey(s string) (*PrivateKey, error) {
	return account.ParsePrivateKey(s)
}

// ParseAddress parses an address string.
func ParseAddress(s string) (Address, error) {
	return account.ParseAddress(s)
}

// AuthorizeTransferPublic authorizes a public transfer and its fee with the
// default fee schedule. A nil rng uses crypto/rand.
func AuthorizeTransferPublic(req *AuthorizeRequest, rng io.Reader) (*AuthorizeResponse, error) {
	return NewAuthorizer(nil).TransferPublic(req, randOrDefault(rng))
}

// NewAuthorizer returns an authorizer pricing fees with fees, or with the
// default schedule when fees is nil.
func NewAuthorizer(fees FeeSchedule) *authorize.Authorizer {
	return authorize.NewAuthorizer(fees)
}

// NewProver builds a prover with its proving keys.
func NewProver(opts ...ProverOption) (*Prover, error) {
	return process.LoadProcess(opts...)
}

// WithHashFunction selects the transcript hash of a Prover.
func WithHashFunction(name string) ProverOption {
	return process.WithHashFunction(name)
}

// NewStaticQuery answers with the given root and path. Either may be nil.
func NewStaticQuery(root *Digest, path *StatePath) Query {
	return query.NewStaticQuery(root, path)
}

// NewRESTQuery resolves state against a node's REST API.
func NewRESTQuery(nodeURL, network string) Query {
	return query.NewRESTQuery(nodeURL, network, nil)
}

// NewStateTree builds the state tree over record commitments, from which
// inclusion paths are taken.
func NewStateTree(commitments []Digest) (*ledger.StateTree, error) {
	return ledger.NewStateTree(commitments)
}

// MarshalTransaction encodes tx in the binary wire format.
func MarshalTransaction(tx *Transaction) ([]byte, error) {
	return codec.Marshal(tx)
}

// UnmarshalTransaction decodes a binary transaction.
func UnmarshalTransaction(data []byte) (*Transaction, error) {
	return ledger.UnmarshalTransaction(data)
}

// MarshalAuthorization encodes auth in the binary wire format.
func MarshalAuthorization(auth *Authorization) ([]byte, error) {
	return codec.Marshal(auth)
}

// UnmarshalAuthorization decodes a binary authorization.
func UnmarshalAuthorization(data []byte) (*Authorization, error) {
	return ledger.UnmarshalAuthorization(data)
}

// ParseDigest parses the string form of a digest.
func ParseDigest(s string) (Digest, error) {
	return core.ParseDigest(s)
}

func randOrDefault(rng io.Reader) io.Reader {
	if rng == nil {
		return rand.Reader
	}
	return rng
}
