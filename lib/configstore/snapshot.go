// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package configstore

import (
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/recordapi/lib/codec"
	"github.com/bureau-foundation/recordapi/lib/schema/recordapi"
)

// zstdEncoder and zstdDecoder are shared; both are safe for concurrent
// use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("configstore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("configstore: zstd decoder initialization failed: " + err.Error())
	}
}

// snapshot is an encoded document ready for storage.
type snapshot struct {
	compressed []byte
	size       int
	digest     string
}

// encodeSnapshot encodes a document as deterministic CBOR, compresses
// it, and fingerprints the uncompressed encoding.
func encodeSnapshot(document *recordapi.Config) (snapshot, error) {
	encoded, err := codec.Marshal(document)
	if err != nil {
		return snapshot{}, fmt.Errorf("encoding document: %w", err)
	}
	return snapshot{
		compressed: zstdEncoder.EncodeAll(encoded, nil),
		size:       len(encoded),
		digest:     Digest(encoded),
	}, nil
}

// decodeSnapshot reverses encodeSnapshot.
func decodeSnapshot(compressed []byte, size int) (*recordapi.Config, error) {
	encoded, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot: %w", err)
	}
	if len(encoded) != size {
		return nil, fmt.Errorf("decompressing snapshot: got %d bytes, expected %d", len(encoded), size)
	}
	var document recordapi.Config
	if err := codec.Unmarshal(encoded, &document); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &document, nil
}

// Digest returns the hex BLAKE3-256 of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DocumentDigest fingerprints a document by its deterministic CBOR
// encoding. Equal documents have equal digests regardless of backend.
func DocumentDigest(document *recordapi.Config) (string, error) {
	encoded, err := codec.Marshal(document)
	if err != nil {
		return "", fmt.Errorf("configstore: encoding document: %w", err)
	}
	return Digest(encoded), nil
}
