// Package digest implements an incremental SHA-256 used to derive stable
// content-addressed keys. The implementation is self-contained so the key
// format never silently changes underneath persisted data.
package digest

import "encoding/binary"

// Size is the digest length in bytes.
const Size = 32

// BlockSize is the compression block length in bytes.
const BlockSize = 64

var roundConstants = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5, 0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3, 0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc, 0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7, 0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13, 0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3, 0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5, 0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208, 0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

var initialState = [8]uint32{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
	0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

// Hasher accumulates a byte stream and produces SHA-256 digests. Digest
// finalizes a copy of the running state, so intermediate digests can be taken
// and the stream continued afterwards. Start resets for a fresh message.
type Hasher struct {
	state  [8]uint32
	queue  ByteQueue
	length uint64
}

// New returns a started hasher.
func New() *Hasher {
	h := &Hasher{}
	h.Start()
	return h
}

// Start resets the hasher to hash a new message.
func (h *Hasher) Start() {
	h.state = initialState
	h.queue.reset()
	h.length = 0
}

// Update appends p to the message. Chunk boundaries are irrelevant: any split
// of a message across Update calls yields the same digest.
func (h *Hasher) Update(p []byte) {
	h.length += uint64(len(p))
	h.queue.Enqueue(p)

	var block [BlockSize]byte
	for h.queue.Len() >= BlockSize {
		h.queue.Dequeue(block[:])
		compress(&h.state, block[:])
	}
}

// Digest finalizes the message and returns its SHA-256. The padding pass runs
// on copies of the state and the queued tail; the hasher itself stays usable
// for further Update calls.
func (h *Hasher) Digest() [Size]byte {
	state := h.state

	rest := h.queue.Len() // always < BlockSize after Update
	padded := make([]byte, 0, 2*BlockSize)
	tail := make([]byte, rest)
	h.queue.Peek(tail)
	padded = append(padded, tail...)
	padded = append(padded, 0x80)
	for len(padded)%BlockSize != BlockSize-8 {
		padded = append(padded, 0)
	}
	padded = binary.BigEndian.AppendUint64(padded, h.length*8)

	for off := 0; off < len(padded); off += BlockSize {
		compress(&state, padded[off:off+BlockSize])
	}

	var out [Size]byte
	for i, word := range state {
		binary.BigEndian.PutUint32(out[i*4:], word)
	}
	return out
}

// Sum256 hashes p in one shot.
func Sum256(p []byte) [Size]byte {
	h := New()
	h.Update(p)
	return h.Digest()
}

func compress(state *[8]uint32, block []byte) {
	var w [64]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(block[i*4:])
	}
	for i := 16; i < 64; i++ {
		s0 := rotr(w[i-15], 7) ^ rotr(w[i-15], 18) ^ (w[i-15] >> 3)
		s1 := rotr(w[i-2], 17) ^ rotr(w[i-2], 19) ^ (w[i-2] >> 10)
		w[i] = w[i-16] + s0 + w[i-7] + s1
	}

	a, b, c, d, e, f, g, hh := state[0], state[1], state[2], state[3], state[4], state[5], state[6], state[7]

	for i := 0; i < 64; i++ {
		s1 := rotr(e, 6) ^ rotr(e, 11) ^ rotr(e, 25)
		ch := (e & f) ^ (^e & g)
		t1 := hh + s1 + ch + roundConstants[i] + w[i]
		s0 := rotr(a, 2) ^ rotr(a, 13) ^ rotr(a, 22)
		maj := (a & b) ^ (a & c) ^ (b & c)
		t2 := s0 + maj

		hh = g
		g = f
		f = e
		e = d + t1
		d = c
		c = b
		b = a
		a = t1 + t2
	}

	state[0] += a
	state[1] += b
	state[2] += c
	state[3] += d
	state[4] += e
	state[5] += f
	state[6] += g
	state[7] += hh
}

func rotr(x uint32, n uint) uint32 {
	return (x >> n) | (x << (32 - n))
}
