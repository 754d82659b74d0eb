package crypto

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Private key 0x...01 derives a well-known address; any secp256k1 reference
// table lists this pair.
const (
	knownKeyHex  = "0000000000000000000000000000000000000000000000000000000000000001"
	knownAddress = "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
)

var sigPattern = regexp.MustCompile(`^0x[0-9a-f]{130}$`)

func testOrder() SignableOrder {
	return SignableOrder{
		Salt:          "123456789",
		Maker:         knownAddress,
		Signer:        knownAddress,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount:   "4000000",
		TakerAmount:   "10000000",
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          0,
		SignatureType: 0,
	}
}

func TestNewSignerDerivesAddress(t *testing.T) {
	s, err := NewSigner(knownKeyHex, 137)
	require.NoError(t, err)
	assert.Equal(t, knownAddress, s.Address().Hex())

	prefixed, err := NewSigner("0x"+knownKeyHex, 137)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), prefixed.Address())
}

func TestNewSignerRejectsBadKey(t *testing.T) {
	_, err := NewSigner("not-hex", 137)
	assert.Error(t, err)

	_, err = NewSigner("abcd", 137)
	assert.Error(t, err)
}

func TestSignAuthMessage(t *testing.T) {
	s, err := NewSigner(knownKeyHex, 137)
	require.NoError(t, err)

	sig, err := s.SignAuthMessage(s.Address().Hex(), 1700000000, 0)
	require.NoError(t, err)
	assert.Regexp(t, sigPattern, sig, "65-byte r||s||v signature")
	assert.Contains(t, []byte{0x1b, 0x1c}, mustLastByte(t, sig), "v adjusted to 27/28")

	again, err := s.SignAuthMessage(s.Address().Hex(), 1700000000, 0)
	require.NoError(t, err)
	assert.Equal(t, sig, again, "ECDSA here is deterministic (RFC 6979)")

	other, err := s.SignAuthMessage(s.Address().Hex(), 1700000001, 0)
	require.NoError(t, err)
	assert.NotEqual(t, sig, other)
}

func TestSignOrder(t *testing.T) {
	s, err := NewSigner(knownKeyHex, 137)
	require.NoError(t, err)

	sig, err := s.SignOrder(testOrder())
	require.NoError(t, err)
	assert.Regexp(t, sigPattern, sig)

	flipped := testOrder()
	flipped.Side = 1
	other, err := s.SignOrder(flipped)
	require.NoError(t, err)
	assert.NotEqual(t, sig, other, "side is part of the signed struct")
}

func TestSignOrderChainIDChangesDomain(t *testing.T) {
	polygon, err := NewSigner(knownKeyHex, 137)
	require.NoError(t, err)
	amoy, err := NewSigner(knownKeyHex, 80002)
	require.NoError(t, err)

	sigPolygon, err := polygon.SignOrder(testOrder())
	require.NoError(t, err)
	sigAmoy, err := amoy.SignOrder(testOrder())
	require.NoError(t, err)
	assert.NotEqual(t, sigPolygon, sigAmoy)
}

func TestSignOrderRejectsNonDecimalFields(t *testing.T) {
	s, err := NewSigner(knownKeyHex, 137)
	require.NoError(t, err)

	bad := testOrder()
	bad.MakerAmount = "0x1234"
	_, err = s.SignOrder(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "makerAmount")

	bad = testOrder()
	bad.Salt = ""
	_, err = s.SignOrder(bad)
	assert.Error(t, err)
}

func mustLastByte(t *testing.T, hexSig string) byte {
	t.Helper()
	require.GreaterOrEqual(t, len(hexSig), 4)
	v, err := strconv.ParseUint(hexSig[len(hexSig)-2:], 16, 8)
	require.NoError(t, err)
	return byte(v)
}
