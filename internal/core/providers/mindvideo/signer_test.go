package mindvideo

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexNonce = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestSignerDeterministicDigest(t *testing.T) {
	s := NewSigner("s#c_120*AB")
	s.now = func() time.Time { return time.UnixMilli(1763749163000) }
	s.nonce = func() (string, error) { return "0123456789abcdef", nil }

	p, err := s.Sign()
	require.NoError(t, err)

	sum := md5.Sum([]byte("nonce=0123456789abcdef&timestamp=1763749163000&app_key=s#c_120*AB"))
	assert.Equal(t, "0123456789abcdef", p.Nonce)
	assert.Equal(t, int64(1763749163000), p.Timestamp)
	assert.Equal(t, hex.EncodeToString(sum[:]), p.Sign)
}

func TestSignerNonceShapeAndUniqueness(t *testing.T) {
	s := NewSigner("key")
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		p, err := s.Sign()
		require.NoError(t, err)
		require.Regexp(t, hexNonce, p.Nonce)
		_, dup := seen[p.Nonce]
		require.False(t, dup, "nonce repeated: %s", p.Nonce)
		seen[p.Nonce] = struct{}{}
	}
}

func TestSignerNonceFailure(t *testing.T) {
	s := NewSigner("key")
	s.nonce = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := s.Sign()
	assert.ErrorContains(t, err, "entropy exhausted")
}

func TestSignaturePayloadHeader(t *testing.T) {
	h, err := SignaturePayload{Nonce: "abc", Timestamp: 42, Sign: "d41d"}.Header()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, sonic.UnmarshalString(h, &decoded))
	assert.Equal(t, "abc", decoded["nonce"])
	assert.EqualValues(t, 42, decoded["timestamp"])
	assert.Equal(t, "d41d", decoded["sign"])
}
