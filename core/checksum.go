package core

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/smarty/prebuilt/contracts"
)

type ChecksumVerifier struct{}

func NewChecksumVerifier() *ChecksumVerifier {
	return &ChecksumVerifier{}
}

// Verify streams the whole reader through the digest named by expected
// ("[algorithm:]hex") and compares the hex encodings case-insensitively. A
// digest that is not valid hex of the right length can never match and is
// reported as a mismatch.
func (this *ChecksumVerifier) Verify(reader io.Reader, expected string) error {
	algorithm, digest, err := contracts.SplitChecksum(expected)
	if err != nil {
		return err
	}
	hasher := NewHasher(algorithm)
	if _, err = io.Copy(hasher, reader); err != nil {
		return err
	}
	actual := hex.EncodeToString(hasher.Sum(nil))
	checksum, err := contracts.ParseChecksum(expected)
	if err != nil || actual != checksum.Hex {
		return &contracts.ChecksumMismatch{Algorithm: algorithm, Actual: actual, Expected: strings.ToLower(digest)}
	}
	return nil
}

func NewHasher(algorithm string) hash.Hash {
	switch algorithm {
	case "sha512":
		return sha512.New()
	case "md5":
		return md5.New()
	case "blake3":
		return blake3.New()
	default:
		return sha256.New()
	}
}
