package core

import (
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func testLeaves(n int) []Digest {
	leaves := make([]Digest, n)
	for i := range leaves {
		leaves[i] = HashElements("test.leaf", field.New(uint64(i)))
	}
	return leaves
}

func TestDigestRoundTrip(t *testing.T) {
	d := HashElements("test", field.New(7), field.New(11))

	decoded, err := DigestFromBytes(d.Bytes())
	if err != nil {
		t.Fatalf("DigestFromBytes: %v", err)
	}
	if !decoded.Equal(d) {
		t.Fatalf("digest changed across bytes round trip")
	}

	parsed, err := ParseDigest(d.String())
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if !parsed.Equal(d) {
		t.Fatalf("digest changed across hex round trip")
	}

	if _, err := DigestFromBytes(d.Bytes()[:DigestSize-1]); err == nil {
		t.Fatalf("expected short digest to be rejected")
	}
}

func TestElementFromBytesRejectsNonCanonical(t *testing.T) {
	raw := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	if _, err := ElementFromBytes(raw); err == nil {
		t.Fatalf("expected value above modulus to be rejected")
	}
}

func TestHashDomainSeparation(t *testing.T) {
	a := HashElements("domain.a", field.New(1))
	b := HashElements("domain.b", field.New(1))
	if a.Equal(b) {
		t.Fatalf("different domains produced identical digests")
	}
}

func TestBytesToElementsIsInjectiveOnLength(t *testing.T) {
	a := BytesToElements([]byte{1})
	b := BytesToElements([]byte{1, 0})
	if len(a) == len(b) && a[0].Equal(b[0]) {
		t.Fatalf("length prefix missing")
	}
}

func TestPoseidonSpongeMatchesHash(t *testing.T) {
	elems := []field.Element{field.New(3), field.New(5), field.New(8)}
	sp := NewSponge()
	var block [PoseidonRate]field.Element
	copy(block[:], PoseidonFrame("test.poseidon", elems...))
	sp.AbsorbBlock(block)
	if !sp.Squeeze().Equal(PoseidonHash("test.poseidon", elems...)) {
		t.Fatalf("block absorption and PoseidonHash disagree")
	}

	resumed := SpongeFromState(sp.State())
	resumed.Absorb([]field.Element{field.One})
	sp.AbsorbBlock([PoseidonRate]field.Element{field.One})
	if !resumed.Squeeze().Equal(sp.Squeeze()) {
		t.Fatalf("resumed sponge diverged")
	}
}

func TestPoseidonRounds(t *testing.T) {
	var s PoseidonState
	for i := range s {
		s[i] = field.New(uint64(i))
	}
	stepped := s
	for r := 0; r < PoseidonRounds; r++ {
		stepped = PoseidonRound(stepped, r)
	}
	if stepped != PoseidonPermute(s) {
		t.Fatalf("round-by-round application differs from the permutation")
	}

	full := 0
	for r := 0; r < PoseidonRounds; r++ {
		if PoseidonFullRound(r) {
			full++
		}
	}
	if full != PoseidonFullRounds {
		t.Fatalf("%d full rounds, want %d", full, PoseidonFullRounds)
	}
	if !PoseidonSbox(field.New(2)).Equal(field.New(128)) {
		t.Fatalf("sbox is not x^7")
	}
}

func TestPoseidonDomainSeparation(t *testing.T) {
	a := PoseidonHash("domain.a", field.New(1))
	b := PoseidonHash("domain.b", field.New(1))
	c := PoseidonHash("domain.a", field.New(1), field.Zero)
	if a.Equal(b) || a.Equal(c) {
		t.Fatalf("domain or length did not separate the inputs")
	}
}

func TestMerkleProofs(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8} {
		leaves := testLeaves(n)
		tree, err := NewMerkleTree(leaves)
		if err != nil {
			t.Fatalf("NewMerkleTree(%d): %v", n, err)
		}
		for i, leaf := range leaves {
			proof, err := tree.Proof(i)
			if err != nil {
				t.Fatalf("Proof(%d): %v", i, err)
			}
			if !VerifyProof(tree.Root(), leaf, proof) {
				t.Fatalf("n=%d: proof for leaf %d does not verify", n, i)
			}
			other := leaves[(i+1)%n]
			if n > 1 && VerifyProof(tree.Root(), other, proof) {
				t.Fatalf("n=%d: proof for leaf %d verified a different leaf", n, i)
			}
		}
	}

	if _, err := NewMerkleTree(nil); err == nil {
		t.Fatalf("expected empty tree to fail")
	}
}
