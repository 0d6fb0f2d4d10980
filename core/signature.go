package core

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/smarty/prebuilt/contracts"
)

const maxSignatureSize = 1 << 20

// SignatureVerifier checks OpenPGP detached signatures (armored or binary)
// against a fixed keyring.
type SignatureVerifier struct {
	fetcher contracts.Fetcher
	keyring openpgp.EntityList
}

func NewSignatureVerifier(fetcher contracts.Fetcher, keyring openpgp.EntityList) *SignatureVerifier {
	return &SignatureVerifier{fetcher: fetcher, keyring: keyring}
}

func (this *SignatureVerifier) Verify(ctx context.Context, signed io.Reader, signatureURL string) error {
	if len(this.keyring) == 0 {
		return &contracts.SignatureMismatch{URL: signatureURL, Cause: errMissingKeyring}
	}
	artifact, err := this.fetcher.Fetch(ctx, signatureURL)
	if err != nil {
		return err
	}
	defer func() { _ = artifact.Close() }()
	if artifact.Size() > maxSignatureSize {
		return &contracts.SignatureMismatch{URL: signatureURL, Cause: errSignatureTooLarge}
	}

	signature := bufio.NewReader(artifact)
	if armored(signature) {
		_, err = openpgp.CheckArmoredDetachedSignature(this.keyring, signed, signature, nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(this.keyring, signed, signature, nil)
	}
	if err != nil {
		return &contracts.SignatureMismatch{URL: signatureURL, Cause: err}
	}
	return nil
}

func armored(signature *bufio.Reader) bool {
	prefix, _ := signature.Peek(len(armorPrefix))
	return bytes.Equal(prefix, armorPrefix)
}

// LoadKeyring reads an armored or binary public keyring. A blank path yields
// an empty keyring, which fails every signature check.
func LoadKeyring(path string) (openpgp.EntityList, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	return ParseKeyring(raw)
}

func ParseKeyring(raw []byte) (openpgp.EntityList, error) {
	if bytes.HasPrefix(bytes.TrimSpace(raw), armorPrefix) {
		keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformedKeyring, err)
		}
		return keyring, nil
	}
	keyring, err := openpgp.ReadKeyRing(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedKeyring, err)
	}
	return keyring, nil
}

var armorPrefix = []byte("-----BEGIN PGP")

var (
	errMissingKeyring    = errors.New("no keyring configured (see --keyring)")
	errMalformedKeyring  = errors.New("malformed keyring")
	errSignatureTooLarge = errors.New("signature file is too large")
)
