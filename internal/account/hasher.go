// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Skylog Contributors

package account

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes

	// maxArgon2Memory bounds the m= parameter accepted from a stored hash.
	// argon2 allocates memory KiB per call, so an unbounded value read from
	// the database could exhaust memory. 1 GiB is far above any sane config.
	maxArgon2Memory = 1 << 20
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("ACCOUNT_EMPTY_PASSWORD").Errorf("password cannot be empty")

// legacyHashPattern matches hashes produced by the deprecated pre-migration
// scheme: a signed-integer-looking string, digits only with an optional
// leading minus.
var legacyHashPattern = regexp.MustCompile(`^-?[0-9]+$`)

// IsLegacyHash reports whether a stored hash is in the deprecated
// pre-migration format.
func IsLegacyHash(hash string) bool {
	return legacyHashPattern.MatchString(hash)
}

// CredentialHasher produces and verifies salted password hashes.
type CredentialHasher interface {
	// Hash produces an argon2id hash of the password with a fresh random
	// salt. Two calls with the same password yield different hashes.
	Hash(password string) (string, error)

	// Verify reports whether the password matches the stored hash.
	// Legacy-format hashes never verify, forcing re-registration under the
	// current scheme. Malformed hashes verify false rather than erroring.
	Verify(password, hash string) bool
}

// Argon2idHasher implements CredentialHasher using argon2id.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("ACCOUNT_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// Encode as PHC string format
	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify reports whether the password matches the stored hash.
//
// Classification runs before any parsing: a legacy-shaped hash is rejected
// unconditionally and never reaches the argon2id verifier, since a legacy
// string is not valid PHC input.
func (h *Argon2idHasher) Verify(password, encodedHash string) bool {
	if IsLegacyHash(encodedHash) {
		return false
	}

	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	// Guard parameter ranges before calling argon2: zero rounds panics
	// inside the library, and an oversized m= would allocate memory*1KiB.
	if time == 0 || memory > maxArgon2Memory {
		return false
	}
	if threads == 0 || threads > 255 {
		return false
	}
	keyLen := len(expectedHash)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))

	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// Compile-time interface check.
var _ CredentialHasher = (*Argon2idHasher)(nil)
