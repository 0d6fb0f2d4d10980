package contracts

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const DefaultChecksumAlgorithm = "sha256"

// digestSizes lists the supported algorithms and their digest length in bytes.
var digestSizes = map[string]int{
	"sha256": 32,
	"sha512": 64,
	"md5":    16,
	"blake3": 32,
}

type Checksum struct {
	Algorithm string
	Hex       string
}

func (this Checksum) String() string {
	return this.Algorithm + ":" + this.Hex
}

// SplitChecksum separates "[algorithm:]digest" and checks only that the
// algorithm is supported; the digest is returned as written.
func SplitChecksum(raw string) (algorithm, digest string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errBlankChecksum
	}
	algorithm, digest = DefaultChecksumAlgorithm, raw
	if index := strings.Index(raw, ":"); index >= 0 {
		algorithm, digest = strings.ToLower(raw[:index]), raw[index+1:]
	}
	if _, found := digestSizes[algorithm]; !found {
		return "", "", fmt.Errorf("%w: %q", errUnsupportedAlgorithm, algorithm)
	}
	return algorithm, digest, nil
}

// ParseChecksum accepts "hex" (sha256) or "algorithm:hex". The hex digits are
// normalized to lower case; the length must match the algorithm.
func ParseChecksum(raw string) (Checksum, error) {
	algorithm, digest, err := SplitChecksum(raw)
	if err != nil {
		return Checksum{}, err
	}
	size := digestSizes[algorithm]
	decoded, err := hex.DecodeString(digest)
	if err != nil {
		return Checksum{}, fmt.Errorf("%w: %v", errMalformedChecksum, err)
	}
	if len(decoded) != size {
		return Checksum{}, fmt.Errorf("%w: %s digest must be %d hex characters, got %d",
			errMalformedChecksum, algorithm, size*2, len(digest))
	}
	return Checksum{Algorithm: algorithm, Hex: strings.ToLower(digest)}, nil
}

var (
	errBlankChecksum        = errors.New("checksum is required")
	errUnsupportedAlgorithm = errors.New("unsupported checksum algorithm")
	errMalformedChecksum    = errors.New("malformed checksum")
)
