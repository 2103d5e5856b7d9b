package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownVectors(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
		{
			"abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq",
			"248d6a61d20638b8e5c026930c3e6039a33ce45964ff2167f6ecedd419db06c1",
		},
	}

	for _, tc := range cases {
		got := Sum256([]byte(tc.input))
		assert.Equal(t, tc.want, hex.EncodeToString(got[:]), "input %q", tc.input)
	}
}

func TestMultiByteUTF8(t *testing.T) {
	input := []byte("größer-als-Zeichen → 漢字")
	want := sha256.Sum256(input)
	got := Sum256(input)
	assert.Equal(t, want, got)
}

func TestSplitInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	message := make([]byte, 1000)
	rng.Read(message)
	want := sha256.Sum256(message)

	for trial := 0; trial < 50; trial++ {
		h := New()
		rest := message
		for len(rest) > 0 {
			n := rng.Intn(len(rest)) + 1
			h.Update(rest[:n])
			rest = rest[n:]
		}
		require.Equal(t, want, h.Digest(), "trial %d", trial)
	}
}

// Digest must not consume the stream: taking an intermediate digest and then
// continuing the stream has to match hashing the whole message in one go.
func TestIntermediateDigest(t *testing.T) {
	h := New()
	h.Update([]byte("hello "))

	mid := h.Digest()
	wantMid := sha256.Sum256([]byte("hello "))
	assert.Equal(t, wantMid, mid)

	h.Update([]byte("world"))
	want := sha256.Sum256([]byte("hello world"))
	assert.Equal(t, want, h.Digest())

	// Digest is stable when called repeatedly with no Update in between.
	assert.Equal(t, want, h.Digest())
}

func TestStartResets(t *testing.T) {
	h := New()
	h.Update([]byte("garbage that must disappear"))
	h.Start()
	h.Update([]byte("abc"))

	want := sha256.Sum256([]byte("abc"))
	assert.Equal(t, want, h.Digest())
}

func TestLargeStream(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	message := make([]byte, 1<<16)
	rng.Read(message)

	h := New()
	for off := 0; off < len(message); off += 4096 {
		h.Update(message[off : off+4096])
	}
	assert.Equal(t, sha256.Sum256(message), h.Digest())
}

func TestByteQueueWrapAround(t *testing.T) {
	var q ByteQueue
	block := make([]byte, 48)

	// Repeated enqueue/dequeue below capacity forces the head to wrap.
	for i := 0; i < 100; i++ {
		in := make([]byte, 48)
		for j := range in {
			in[j] = byte(i + j)
		}
		q.Enqueue(in)
		q.Dequeue(block)
		require.Equal(t, in, block, "iteration %d", i)
	}
	assert.Equal(t, 0, q.Len())
}

func TestByteQueueOverread(t *testing.T) {
	var q ByteQueue
	q.Enqueue([]byte{1, 2, 3})
	assert.Panics(t, func() {
		q.Dequeue(make([]byte, 4))
	})
}
