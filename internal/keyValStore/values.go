package keyValStore

import (
	"bytes"
	"fmt"

	"github.com/ulikunitz/xz/lzma"
)

// Stored values carry a one-byte encoding marker. Payloads above the
// threshold (range member lists, lookup results) are lzma-compressed; small
// records are not worth the CPU.
const (
	valueRaw  byte = 0
	valueLzma byte = 1

	compressionThreshold = 1024
)

// EncodeValue wraps raw for storage, compressing large payloads.
func EncodeValue(raw []byte) ([]byte, error) {
	if len(raw) < compressionThreshold {
		return append([]byte{valueRaw}, raw...), nil
	}

	compressed, err := compressWithLzma(raw)
	if err != nil {
		return nil, fmt.Errorf("error compressing value: %w", err)
	}
	if len(compressed) >= len(raw) {
		return append([]byte{valueRaw}, raw...), nil
	}
	return append([]byte{valueLzma}, compressed...), nil
}

// DecodeValue unwraps a stored value.
func DecodeValue(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, fmt.Errorf("error decoding value: missing encoding marker")
	}
	switch stored[0] {
	case valueRaw:
		return stored[1:], nil
	case valueLzma:
		raw, err := decompressWithLzma(stored[1:])
		if err != nil {
			return nil, fmt.Errorf("error decompressing value: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("error decoding value: unknown marker %d", stored[0])
	}
}

func compressWithLzma(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	if _, err = w.Write(data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressWithLzma(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err = buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
