package mindvideo

import (
	"errors"
	"math/rand/v2"
	"strings"

	"mindgate/internal/core"
)

// ErrNoCredentials indicates an empty credential pool
var ErrNoCredentials = errors.New("mindvideo: no credentials configured")

// CredentialPicker selects the credential a new task is submitted with
type CredentialPicker interface {
	Pick() (core.Credential, error)
	// First is used for out-of-band calls with no task affinity
	First() (core.Credential, error)
}

// RandomPicker draws uniformly with replacement. The pool is read-only after construction.
type RandomPicker struct {
	pool []core.Credential
	intn func(n int) int
}

// NewRandomPicker builds a picker from raw tokens, skipping blanks
func NewRandomPicker(tokens []string) (*RandomPicker, error) {
	pool := make([]core.Credential, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			pool = append(pool, core.Credential(t))
		}
	}
	if len(pool) == 0 {
		return nil, ErrNoCredentials
	}
	return &RandomPicker{pool: pool, intn: rand.IntN}, nil
}

// Pick implements CredentialPicker
func (p *RandomPicker) Pick() (core.Credential, error) {
	if len(p.pool) == 0 {
		return "", ErrNoCredentials
	}
	return p.pool[p.intn(len(p.pool))], nil
}

// First implements CredentialPicker
func (p *RandomPicker) First() (core.Credential, error) {
	if len(p.pool) == 0 {
		return "", ErrNoCredentials
	}
	return p.pool[0], nil
}

// Size returns the pool size
func (p *RandomPicker) Size() int {
	return len(p.pool)
}
