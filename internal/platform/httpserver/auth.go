package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	headerRequestID       = "X-Request-Id"
	headerCallerAddress   = "X-Caller-Address"
	headerCallerSignature = "X-Caller-Signature"
)

var ErrUnauthenticated = errors.New("caller is not authenticated")

// Authenticator resolves the caller of a mutating request. body is the raw
// request body, already read by the server.
type Authenticator interface {
	Authenticate(r *http.Request, body []byte) (common.Address, error)
}

// HeaderAuthenticator trusts X-Caller-Address. Use it only behind a gateway
// that authenticates callers and sets the header.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request, _ []byte) (common.Address, error) {
	return callerFromHeader(r)
}

// SignatureAuthenticator requires X-Caller-Signature, an EIP-191 personal
// signature by the caller over RequestDigest.
type SignatureAuthenticator struct{}

func (SignatureAuthenticator) Authenticate(r *http.Request, body []byte) (common.Address, error) {
	caller, err := callerFromHeader(r)
	if err != nil {
		return common.Address{}, err
	}
	raw := strings.TrimSpace(r.Header.Get(headerCallerSignature))
	if raw == "" {
		return common.Address{}, fmt.Errorf("%w: %s header is required", ErrUnauthenticated, headerCallerSignature)
	}
	signature, err := hexutil.Decode(raw)
	if err != nil || len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: malformed signature", ErrUnauthenticated)
	}

	digest := RequestDigest(r.Method, r.URL.Path, r.Header.Get(headerRequestID), body)
	signer, err := RecoverSigner(digest, signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if signer != caller {
		return common.Address{}, fmt.Errorf("%w: signature does not match caller", ErrUnauthenticated)
	}
	return caller, nil
}

// RequestDigest binds a signature to one method, path, request id and body:
// keccak256(METHOD + " " + PATH + "\n" + REQUEST_ID + "\n" + BODY).
func RequestDigest(method, path, requestID string, body []byte) common.Hash {
	var b strings.Builder
	b.Grow(len(method) + len(path) + len(requestID) + len(body) + 3)
	b.WriteString(strings.ToUpper(method))
	b.WriteString(" ")
	b.WriteString(path)
	b.WriteString("\n")
	b.WriteString(requestID)
	b.WriteString("\n")
	b.Write(body)
	return crypto.Keccak256Hash([]byte(b.String()))
}

// RecoverSigner returns the address that personal-signed digest. Wallets
// produce V as 27/28; both that and the raw 0/1 form are accepted.
func RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, errors.New("signature must be 65 bytes")
	}
	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(digest.Bytes()), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func callerFromHeader(r *http.Request) (common.Address, error) {
	raw := strings.TrimSpace(r.Header.Get(headerCallerAddress))
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s header must be a hex address", ErrUnauthenticated, headerCallerAddress)
	}
	caller := common.HexToAddress(raw)
	if caller == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero caller address", ErrUnauthenticated)
	}
	return caller, nil
}
