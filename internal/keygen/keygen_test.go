package keygen_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"blobgate/internal/keygen"

	"github.com/stretchr/testify/require"
)

// scriptedSource cycles through a fixed sequence of draws.
type scriptedSource struct {
	draws []int
	next  int
}

func (s *scriptedSource) IntN(n int) int {
	v := s.draws[s.next%len(s.draws)] % n
	s.next++
	return v
}

// fakeProber answers Head from a set of taken keys and counts calls.
type fakeProber struct {
	taken map[string]bool
	// takenFirst reports the first N probes as taken regardless of key.
	takenFirst int
	err        error
	calls      []string
}

func (p *fakeProber) Head(_ context.Context, key string) (bool, error) {
	p.calls = append(p.calls, key)
	if p.err != nil {
		return false, p.err
	}
	if len(p.calls) <= p.takenFirst {
		return true, nil
	}
	return p.taken[key], nil
}

var randomKeyPattern = regexp.MustCompile(`^[A-Za-z0-9]{8}\.png$`)

func TestResolveRandomName(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{}
	gen := keygen.NewGenerator(prober, nil)

	key, err := gen.Resolve(t.Context(), "", "png")
	require.NoError(t, err)
	require.Regexp(t, randomKeyPattern, key)
	require.Equal(t, []string{key}, prober.calls, "the full key should be probed once")
}

func TestResolveSuppliedNameSkipsProbe(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{taken: map[string]bool{"avatar.jpg": true}}
	gen := keygen.NewGenerator(prober, nil)

	key, err := gen.Resolve(t.Context(), "avatar", "jpg")
	require.NoError(t, err)
	require.Equal(t, "avatar.jpg", key)
	require.Empty(t, prober.calls, "supplied names are trusted")
}

func TestResolveDeterministicSource(t *testing.T) {
	t.Parallel()

	// Draws 0..7 map onto the first eight symbols of the alphabet.
	source := &scriptedSource{draws: []int{0, 1, 2, 3, 4, 5, 6, 7}}
	gen := keygen.NewGenerator(&fakeProber{}, source)

	key, err := gen.Resolve(t.Context(), "", "txt")
	require.NoError(t, err)
	require.Equal(t, "abcdefgh.txt", key)
}

func TestResolveSucceedsOnLastAttempt(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{takenFirst: keygen.MaxAttempts - 1}
	gen := keygen.NewGenerator(prober, nil)

	key, err := gen.Resolve(t.Context(), "", "gif")
	require.NoError(t, err)
	require.Len(t, prober.calls, keygen.MaxAttempts)
	require.Equal(t, prober.calls[keygen.MaxAttempts-1], key, "the tenth candidate should win")
}

func TestResolveExhausted(t *testing.T) {
	t.Parallel()

	prober := &fakeProber{takenFirst: keygen.MaxAttempts}
	gen := keygen.NewGenerator(prober, nil)

	key, err := gen.Resolve(t.Context(), "", "gif")
	require.ErrorIs(t, err, keygen.ErrKeysExhausted)
	require.Empty(t, key)
	require.Len(t, prober.calls, keygen.MaxAttempts, "no more than MaxAttempts probes")
}

func TestResolveProbeError(t *testing.T) {
	t.Parallel()

	boom := errors.New("store unavailable")
	prober := &fakeProber{err: boom}
	gen := keygen.NewGenerator(prober, nil)

	_, err := gen.Resolve(t.Context(), "", "gif")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, keygen.ErrKeysExhausted)
	require.Len(t, prober.calls, 1, "a store error stops generation")
}

func TestRandomNameUsesWholeAlphabet(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{draws: []int{61, 26, 52, 0, 25, 51, 60, 35}}
	gen := keygen.NewGenerator(&fakeProber{}, source)

	require.Equal(t, "9A0azZ8J", gen.RandomName())
}

func TestExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		want     string
	}{
		{filename: "a.txt", want: "txt"},
		{filename: "archive.tar.gz", want: "gz"},
		{filename: "clip.MP4", want: "MP4"},
		{filename: ".bashrc", want: "bashrc"},
		{filename: "trailing.", want: ""},
		{filename: "noext", want: "noext"},
	}

	for _, tc := range tests {
		t.Run(tc.filename, func(t *testing.T) {
			require.Equal(t, tc.want, keygen.Extension(tc.filename))
		})
	}
}
