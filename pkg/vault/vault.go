// pkg/vault/vault.go
//
// Password vault for the privileged maintenance commands. The vault
// stores an Argon2id hash of the operator password, wrapped in an
// OS-bound encryption envelope so the file only decrypts for the user
// account that created it.

package vault

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	cerr "github.com/cockroachdb/errors"
	"golang.org/x/crypto/argon2"
)

// EnvelopeProvider binds vault bytes to the local machine and user.
// On Windows this is DPAPI; elsewhere it is unavailable.
type EnvelopeProvider interface {
	Protect(plaintext []byte) ([]byte, error)
	Unprotect(ciphertext []byte) ([]byte, error)
}

const (
	argonMemoryKiB = 19456
	argonTime      = 2
	argonLanes     = 1
	argonKeyLen    = 32
	saltLen        = 16

	vaultVersion = 1

	// DefaultBackoffFloor is the minimum wall-clock duration of a
	// verification attempt, applied to every outcome so timing leaks
	// nothing about which stage rejected the attempt.
	DefaultBackoffFloor = 500 * time.Millisecond
)

// Record is the decrypted vault payload.
type Record struct {
	Version int    `json:"version"`
	Salt    string `json:"salt"`
	Params  string `json:"params"`
	Hash    string `json:"hash"`
}

// Auth creates and verifies vaults through an envelope provider.
type Auth struct {
	envelope EnvelopeProvider

	// BackoffFloor overrides DefaultBackoffFloor, mainly for tests.
	BackoffFloor time.Duration
}

func NewAuth(envelope EnvelopeProvider) *Auth {
	return &Auth{envelope: envelope, BackoffFloor: DefaultBackoffFloor}
}

// CreateVault derives an Argon2id hash of the password with a fresh
// random salt and returns the envelope-protected vault bytes.
func (a *Auth) CreateVault(password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, cerr.Wrap(err, "generate salt")
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemoryKiB, argonLanes, argonKeyLen)

	rec := Record{
		Version: vaultVersion,
		Salt:    base64.RawStdEncoding.EncodeToString(salt),
		Params:  fmt.Sprintf("m=%d,t=%d,p=%d", argonMemoryKiB, argonTime, argonLanes),
		Hash:    encodePHC(salt, hash),
	}

	plaintext, err := json.Marshal(rec)
	if err != nil {
		return nil, cerr.Wrap(err, "serialize vault record")
	}

	protected, err := a.envelope.Protect(plaintext)
	if err != nil {
		return nil, cerr.Wrap(err, "protect vault record")
	}
	return protected, nil
}

// LoadVault decrypts and parses vault bytes, failing closed on any
// version it does not recognize.
func (a *Auth) LoadVault(data []byte) (*Record, error) {
	plaintext, err := a.envelope.Unprotect(data)
	if err != nil {
		return nil, cerr.Wrap(err, "unprotect vault record")
	}

	var rec Record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return nil, cerr.Wrap(err, "parse vault record")
	}
	if rec.Version != vaultVersion {
		return nil, cerr.Newf("unsupported vault version %d", rec.Version)
	}
	return &rec, nil
}

// VerifyPassword checks the password against the vault. Every call
// takes at least BackoffFloor regardless of outcome.
func (a *Auth) VerifyPassword(data []byte, password string) (bool, error) {
	start := time.Now()
	floor := a.BackoffFloor
	defer func() {
		if remaining := floor - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}()

	rec, err := a.LoadVault(data)
	if err != nil {
		return false, err
	}

	salt, stored, err := decodePHC(rec.Hash)
	if err != nil {
		return false, cerr.Mark(cerr.Wrap(err, "decode stored hash"), amberr.ErrAuthFailed)
	}

	derived := argon2.IDKey([]byte(password), salt, argonTime, argonMemoryKiB, argonLanes, argonKeyLen)
	return subtle.ConstantTimeCompare(derived, stored) == 1, nil
}

// encodePHC renders the hash in PHC string format, the same layout
// argon2 reference tooling emits.
func encodePHC(salt, hash []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemoryKiB, argonTime, argonLanes,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))
}

func decodePHC(s string) (salt, hash []byte, err error) {
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, cerr.New("malformed hash string")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, cerr.Wrap(err, "parse hash version")
	}

	var mem, iters, lanes uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &lanes); err != nil {
		return nil, nil, cerr.Wrap(err, "parse hash parameters")
	}
	if mem != argonMemoryKiB || iters != argonTime || lanes != argonLanes {
		return nil, nil, cerr.Newf("unexpected hash parameters %q", parts[3])
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, cerr.Wrap(err, "decode salt")
	}
	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, cerr.Wrap(err, "decode hash")
	}
	return salt, hash, nil
}
