// Package gateway translates the Click and Payme wire protocols onto the settlement service.
package gateway

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/academy-ledger/internal/domain/shared"
)

// SecretField marks the position of the shared secret inside a scheme's field list.
const SecretField = "<secret>"

// Scheme describes how a provider authenticates a callback: the fields concatenated in
// order (with the secret at SecretField), the separator between them, and the digest.
type Scheme struct {
	Provider  shared.PaymentSource
	Fields    []string
	Separator string
	Digest    func(raw []byte) string
	// FoldCase accepts hex digests in either case
	FoldCase bool
}

var (
	// ClickScheme is md5(click_paydoc_id + attempt_trans_id + service_id + SECRET + paramsIV + action + sign_time)
	ClickScheme = Scheme{
		Provider: shared.PaymentSourceClick,
		Fields:   []string{"click_paydoc_id", "attempt_trans_id", "service_id", SecretField, "params", "action", "sign_time"},
		Digest:   md5Hex,
		FoldCase: true,
	}

	// PaymeBasicScheme is the HTTP Basic credential "login:key"
	PaymeBasicScheme = Scheme{
		Provider:  shared.PaymentSourcePayme,
		Fields:    []string{"login", SecretField},
		Separator: ":",
		Digest:    base64.StdEncoding.EncodeToString,
	}

	// PaymeXAuthScheme is the raw key sent in the X-Auth header
	PaymeXAuthScheme = Scheme{
		Provider: shared.PaymentSourcePayme,
		Fields:   []string{SecretField},
		Digest:   func(raw []byte) string { return string(raw) },
	}
)

func md5Hex(raw []byte) string {
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])
}

// Sign renders the scheme's fields in order and digests them. Missing fields render empty.
func Sign(s Scheme, fields map[string]string, secret string) string {
	parts := make([]string, len(s.Fields))
	for i, name := range s.Fields {
		if name == SecretField {
			parts[i] = secret
			continue
		}
		parts[i] = fields[name]
	}
	return s.Digest([]byte(strings.Join(parts, s.Separator)))
}

// Verify compares the presented signature against the expected one in constant time.
// An empty secret never verifies.
func Verify(s Scheme, fields map[string]string, secret, presented string) error {
	if secret == "" || presented == "" {
		return shared.SignatureInvalidError{Provider: s.Provider}
	}
	expected := Sign(s, fields, secret)
	if s.FoldCase {
		presented = strings.ToLower(presented)
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) != 1 {
		return shared.SignatureInvalidError{Provider: s.Provider}
	}
	return nil
}
