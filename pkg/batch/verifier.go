// pkg/batch/verifier.go

package batch

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/vault"
	cerr "github.com/cockroachdb/errors"
)

// VaultVerifier gates unlock batches behind the password vault. Any
// failure mode collapses into ErrAuthFailed so a caller cannot probe
// whether the vault exists, is corrupt, or the password was wrong.
type VaultVerifier struct {
	auth     *vault.Auth
	store    *vault.Store
	password string
}

func NewVaultVerifier(auth *vault.Auth, store *vault.Store, password string) *VaultVerifier {
	return &VaultVerifier{auth: auth, store: store, password: password}
}

func (v *VaultVerifier) Verify(ctx context.Context) error {
	data, err := v.store.Read()
	if err != nil {
		if cerr.Is(err, vault.ErrNotFound) {
			// No vault means unlock was never gated in the first place.
			return nil
		}
		return cerr.Mark(err, amberr.ErrAuthFailed)
	}

	ok, err := v.auth.VerifyPassword(data, v.password)
	if err != nil {
		return cerr.Mark(err, amberr.ErrAuthFailed)
	}
	if !ok {
		return cerr.Mark(cerr.New("password rejected"), amberr.ErrAuthFailed)
	}
	return nil
}
