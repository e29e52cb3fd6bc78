// Package rsahex implements the raw RSA password encryption expected by the
// SSO login form. The server hands out a hex modulus/exponent pair per login
// attempt and expects the ciphertext back as a lowercase hex string with no
// padding scheme applied.
package rsahex

import (
	"encoding/hex"
	"fmt"
	"math/big"
)

// Encrypt computes password^exponent mod modulus over the UTF-8 bytes of the
// password and renders the result as lowercase hex. The modulus and exponent
// are hex strings as returned by the public-key endpoint. No PKCS#1 padding
// is applied; the remote verifier expects textbook RSA.
func Encrypt(password, modulusHex, exponentHex string) (string, error) {
	m, ok := new(big.Int).SetString(modulusHex, 16)
	if !ok {
		return "", fmt.Errorf("rsahex: parse modulus %q", modulusHex)
	}
	e, ok := new(big.Int).SetString(exponentHex, 16)
	if !ok {
		return "", fmt.Errorf("rsahex: parse exponent %q", exponentHex)
	}
	if m.Sign() <= 0 || e.Sign() <= 0 {
		return "", fmt.Errorf("rsahex: non-positive key component")
	}

	plain := new(big.Int).SetBytes([]byte(password))
	cipher := new(big.Int).Exp(plain, e, m)
	return hex.EncodeToString(cipher.Bytes()), nil
}
