package manifest

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/albertocavalcante/assetpatch/pkg/config"
)

// Hasher fingerprints file contents for change detection.
// Hashes are lowercase hex without zero padding.
type Hasher interface {
	// Name returns the algorithm name as used in configuration.
	Name() string
	// HashFile hashes the full contents of the file at path.
	HashFile(path string) (string, error)
	// HashBytes hashes an in-memory buffer.
	HashBytes(data []byte) string
}

// NewHasher returns the hasher for a configured algorithm name.
// An empty name selects CRC-32.
func NewHasher(algorithm string) (Hasher, error) {
	switch algorithm {
	case "", config.AlgorithmCRC32:
		return CRC32{}, nil
	case config.AlgorithmXXHash:
		return XXHash{}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q (want %q or %q)",
			algorithm, config.AlgorithmCRC32, config.AlgorithmXXHash)
	}
}

// CRC32 hashes with the IEEE CRC-32 polynomial. This is the format existing
// VERSION.json files carry.
type CRC32 struct{}

// Name implements Hasher.
func (CRC32) Name() string { return config.AlgorithmCRC32 }

// HashFile computes the CRC-32 of file contents, returns unpadded hex.
func (CRC32) HashFile(path string) (string, error) {
	h := crc32.NewIEEE()
	if err := copyFile(h, path); err != nil {
		return "", err
	}
	return strconv.FormatUint(uint64(h.Sum32()), 16), nil
}

// HashBytes computes the CRC-32 of data, returns unpadded hex.
func (CRC32) HashBytes(data []byte) string {
	return strconv.FormatUint(uint64(crc32.ChecksumIEEE(data)), 16)
}

// XXHash hashes with xxHash64.
type XXHash struct{}

// Name implements Hasher.
func (XXHash) Name() string { return config.AlgorithmXXHash }

// HashFile computes xxHash64 of file contents, returns unpadded hex.
func (XXHash) HashFile(path string) (string, error) {
	h := xxhash.New()
	if err := copyFile(h, path); err != nil {
		return "", err
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}

// HashBytes computes xxHash64 of data, returns unpadded hex.
func (XXHash) HashBytes(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// HashFile computes the CRC-32 of file contents.
func HashFile(path string) (string, error) {
	return CRC32{}.HashFile(path)
}

// HashBytes computes the CRC-32 of data.
func HashBytes(data []byte) string {
	return CRC32{}.HashBytes(data)
}

func copyFile(h hash.Hash, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("failed to hash file: %w", err)
	}
	return nil
}
