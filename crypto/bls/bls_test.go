package bls

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-map-lightclient/inter/validatorpk"
)

func fakeKeys(n int) []*SecretKey {
	keys := make([]*SecretKey, n)
	for i := range keys {
		keys[i] = SecretKeyFromSeed([]byte{byte(i), 'b', 'l', 's'})
	}
	return keys
}

func TestKeysDecode(t *testing.T) {
	require := require.New(t)
	sk := SecretKeyFromSeed([]byte("seed"))

	_, err := DecodeG1(sk.G1PubKey())
	require.NoError(err)
	_, err = DecodeG2(sk.G2PubKey())
	require.NoError(err)

	// Deterministic derivation.
	require.Equal(sk.G1PubKey(), SecretKeyFromSeed([]byte("seed")).G1PubKey())
	require.NotEqual(sk.G1PubKey(), SecretKeyFromSeed([]byte("other")).G1PubKey())

	// A point that is not on the curve.
	bad := sk.G1PubKey()
	bad[63] ^= 0x01
	_, err = DecodeG1(bad)
	require.True(errors.Is(err, ErrInvalidPoint))

	badG2 := sk.G2PubKey()
	badG2[127] ^= 0x01
	_, err = DecodeG2(badG2)
	require.True(errors.Is(err, ErrInvalidPoint))
}

func TestSignVerify(t *testing.T) {
	require := require.New(t)
	sk := SecretKeyFromSeed([]byte("signer"))
	msg := []byte("block hash")

	sig, err := sk.Sign(msg)
	require.NoError(err)
	require.Len(sig, SignatureLength)
	require.NoError(Verify(sk.G2PubKey(), msg, sig))

	// Wrong message.
	require.True(errors.Is(Verify(sk.G2PubKey(), []byte("other hash"), sig), ErrInvalidSignature))

	// Wrong key.
	other := SecretKeyFromSeed([]byte("other"))
	require.True(errors.Is(Verify(other.G2PubKey(), msg, sig), ErrInvalidSignature))

	// Malformed signature.
	require.True(errors.Is(Verify(sk.G2PubKey(), msg, sig[:32]), ErrInvalidPoint))
}

func TestAggregate(t *testing.T) {
	require := require.New(t)
	keys := fakeKeys(4)
	msg := []byte("quorum")

	var (
		g1s  []validatorpk.G1PubKey
		g2s  []validatorpk.G2PubKey
		sigs [][]byte
	)
	for _, k := range keys {
		g1s = append(g1s, k.G1PubKey())
		g2s = append(g2s, k.G2PubKey())
		sig, err := k.Sign(msg)
		require.NoError(err)
		sigs = append(sigs, sig)
	}

	aggPK, err := AggregateG2(g2s)
	require.NoError(err)
	aggSig, err := AggregateSignatures(sigs)
	require.NoError(err)

	require.NoError(VerifyAggregateKey(g1s, aggPK))
	require.NoError(Verify(aggPK, msg, aggSig))

	// The aggregate key of a subset does not match the full set.
	partial, err := AggregateG2(g2s[:3])
	require.NoError(err)
	require.True(errors.Is(VerifyAggregateKey(g1s, partial), ErrAggregateKeyMismatch))
	require.NoError(VerifyAggregateKey(g1s[:3], partial))

	// Signature of a subset does not verify under the full key.
	partialSig, err := AggregateSignatures(sigs[:3])
	require.NoError(err)
	require.True(errors.Is(Verify(aggPK, msg, partialSig), ErrInvalidSignature))
	require.NoError(Verify(partial, msg, partialSig))
}
