package mindvideo

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const nonceLen = 16

// SignaturePayload is serialised into the i-sign header of every provider call
type SignaturePayload struct {
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"`
	Sign      string `json:"sign"`
}

// Header renders the payload as the header value
func (p SignaturePayload) Header() (string, error) {
	b, err := sonic.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode signature: %w", err)
	}
	return string(b), nil
}

// Signer produces per-request signatures from a shared app key
type Signer struct {
	appKey string
	now    func() time.Time
	nonce  func() (string, error)
}

// NewSigner creates a signer using the wall clock and crypto-random nonces
func NewSigner(appKey string) *Signer {
	return &Signer{
		appKey: appKey,
		now:    time.Now,
		nonce:  randomNonce,
	}
}

// Sign returns a fresh nonce, the current millisecond timestamp and their digest
func (s *Signer) Sign() (SignaturePayload, error) {
	nonce, err := s.nonce()
	if err != nil {
		return SignaturePayload{}, fmt.Errorf("generate nonce: %w", err)
	}
	ts := s.now().UnixMilli()
	return SignaturePayload{
		Nonce:     nonce,
		Timestamp: ts,
		Sign:      digest(fmt.Sprintf("nonce=%s&timestamp=%d&app_key=%s", nonce, ts, s.appKey)),
	}, nil
}

// randomNonce takes the first 16 hex characters of a random UUID
func randomNonce() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", "")[:nonceLen], nil
}

func digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
