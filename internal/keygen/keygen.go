// Package keygen assigns object keys to new uploads.
package keygen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

const (
	// Alphabet is the set of symbols random names are drawn from.
	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// KeyLength is the number of symbols in a random name.
	KeyLength = 8

	// MaxAttempts bounds the number of random candidates probed per upload.
	MaxAttempts = 10
)

// ErrKeysExhausted is returned when every random candidate already names an
// existing object.
var ErrKeysExhausted = errors.New("unable to find an unused key")

// RandomSource yields uniformly distributed integers in [0, n).
type RandomSource interface {
	IntN(n int) int
}

// Prober reports whether a key is already taken.
type Prober interface {
	Head(ctx context.Context, key string) (bool, error)
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// GlobalSource returns a RandomSource backed by the process-wide
// math/rand/v2 generator, which is safe for concurrent use.
func GlobalSource() RandomSource {
	return globalSource{}
}

// Generator resolves the key a new upload is stored under.
type Generator struct {
	random RandomSource
	store  Prober
}

// NewGenerator returns a Generator that draws names from random and checks
// them against store. A nil random uses GlobalSource.
func NewGenerator(store Prober, random RandomSource) *Generator {
	if random == nil {
		random = GlobalSource()
	}
	return &Generator{random: random, store: store}
}

// RandomName returns a single candidate name of KeyLength symbols.
func (g *Generator) RandomName() string {
	var b strings.Builder
	b.Grow(KeyLength)
	for range KeyLength {
		b.WriteByte(Alphabet[g.random.IntN(len(Alphabet))])
	}
	return b.String()
}

// Resolve returns the final key "{name}.{ext}" for an upload.
//
// A non-empty name is used verbatim and never probed; the caller owns any
// collision. Otherwise up to MaxAttempts random names are tried and the
// first whose full key is absent from the store wins. Head and the later
// write are not atomic, so two concurrent uploads may in theory pick the
// same key.
func (g *Generator) Resolve(ctx context.Context, name string, ext string) (string, error) {
	if name != "" {
		return name + "." + ext, nil
	}

	for range MaxAttempts {
		key := g.RandomName() + "." + ext
		exists, err := g.store.Head(ctx, key)
		if err != nil {
			return "", fmt.Errorf("probe key %q: %w", key, err)
		}
		if !exists {
			return key, nil
		}
	}

	return "", ErrKeysExhausted
}

// Extension returns the substring of filename after its last ".". A name
// without a dot is returned whole.
func Extension(filename string) string {
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		return filename[i+1:]
	}
	return filename
}
