// Package crypt is the credential primitive: it produces and verifies opaque
// password hashes. Callers never inspect hash internals.
package crypt

import "golang.org/x/crypto/bcrypt"

// Produce hashes a plaintext secret. An error here surfaces to users as an
// internal fault; it does not carry secret material.
func Produce(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether secret matches the stored hash.
func Verify(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
