// Package codec encodes a serialized settings document into the small
// keyed items a platform sync store accepts, and back.
//
// Layout: a meta item records the chunk count, the uncompressed length
// and an xxhash64 checksum of the uncompressed document. Chunk items
// hold consecutive slices of base64(deflate(document)).
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alexjbarnes/settings-sync/internal/errors"
	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/flate"
)

const (
	// MetaKey is the item holding chunk metadata.
	MetaKey = "settings.meta"

	// chunkKeyPrefix prefixes every chunk item key.
	chunkKeyPrefix = "settings.chunk."

	// DefaultChunkSize keeps each item under the per-item quota of the
	// common browser sync areas (8 KiB including the key).
	DefaultChunkSize = 7000

	// maxDecodedSize caps the inflated document to stop a hostile store
	// from expanding a tiny payload into unbounded memory.
	maxDecodedSize = 16 * 1024 * 1024
)

type meta struct {
	Chunks   int    `json:"chunks"`
	Length   int    `json:"length"`
	Checksum string `json:"checksum"`
}

// Codec splits payloads into chunks of at most ChunkSize characters.
type Codec struct {
	ChunkSize int
}

// New returns a codec using DefaultChunkSize.
func New() *Codec {
	return &Codec{ChunkSize: DefaultChunkSize}
}

// ChunkKey returns the item key for chunk i.
func ChunkKey(i int) string {
	return chunkKeyPrefix + strconv.Itoa(i)
}

// IsCodecKey reports whether key belongs to an encoded payload.
func IsCodecKey(key string) bool {
	return key == MetaKey || strings.HasPrefix(key, chunkKeyPrefix)
}

// Encode compresses and splits payload into store items.
func (c *Codec) Encode(payload []byte) (map[string]string, error) {
	var buf bytes.Buffer

	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("creating compressor: %w", err)
	}

	if _, err := w.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	size := c.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	items := make(map[string]string)

	n := 0
	for start := 0; start < len(encoded); start += size {
		end := min(start+size, len(encoded))
		items[ChunkKey(n)] = encoded[start:end]
		n++
	}

	m, err := json.Marshal(meta{
		Chunks:   n,
		Length:   len(payload),
		Checksum: strconv.FormatUint(xxhash.Sum64(payload), 16),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding meta: %w", err)
	}

	items[MetaKey] = string(m)

	return items, nil
}

// Decode reassembles a payload from store items. It returns nil with no
// error when the store holds no payload.
func (c *Codec) Decode(items map[string]string) ([]byte, error) {
	rawMeta, ok := items[MetaKey]
	if !ok {
		return nil, nil
	}

	var m meta
	if err := json.Unmarshal([]byte(rawMeta), &m); err != nil {
		return nil, fmt.Errorf("%w: meta item: %v", errors.ErrDecode, err)
	}

	if m.Chunks < 0 || m.Length < 0 || m.Length > maxDecodedSize {
		return nil, fmt.Errorf("%w: meta item out of range", errors.ErrDecode)
	}

	var sb strings.Builder

	for i := 0; i < m.Chunks; i++ {
		chunk, ok := items[ChunkKey(i)]
		if !ok {
			return nil, fmt.Errorf("%w: missing chunk %d of %d", errors.ErrDecode, i, m.Chunks)
		}

		sb.WriteString(chunk)
	}

	compressed, err := base64.StdEncoding.DecodeString(sb.String())
	if err != nil {
		return nil, fmt.Errorf("%w: chunk encoding: %v", errors.ErrDecode, err)
	}

	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()

	payload, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: inflating payload: %v", errors.ErrDecode, err)
	}

	if len(payload) != m.Length {
		return nil, fmt.Errorf("%w: payload length %d, expected %d", errors.ErrDecode, len(payload), m.Length)
	}

	if strconv.FormatUint(xxhash.Sum64(payload), 16) != m.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", errors.ErrDecode)
	}

	return payload, nil
}
