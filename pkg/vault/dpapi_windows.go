//go:build windows

// pkg/vault/dpapi_windows.go

package vault

import (
	"unsafe"

	"github.com/CodeMonkeyCybersecurity/amberlock/pkg/amberr"
	"golang.org/x/sys/windows"
)

// dpapiEnvelope wraps vault bytes with CryptProtectData, keyed to the
// current user account. CRYPTPROTECT_UI_FORBIDDEN keeps DPAPI from
// popping credential UI when running non-interactively.
type dpapiEnvelope struct{}

// NewPlatformEnvelope returns the DPAPI-backed envelope provider.
func NewPlatformEnvelope() EnvelopeProvider {
	return dpapiEnvelope{}
}

func (dpapiEnvelope) Protect(plaintext []byte) ([]byte, error) {
	in := toBlob(plaintext)
	var out windows.DataBlob
	err := windows.CryptProtectData(&in, nil, nil, 0, nil, windows.CRYPTPROTECT_UI_FORBIDDEN, &out)
	if err != nil {
		return nil, amberr.NewOsApiError("CryptProtectData", osCode(err), err.Error())
	}
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(out.Data)))
	return copyBlob(&out), nil
}

func (dpapiEnvelope) Unprotect(ciphertext []byte) ([]byte, error) {
	in := toBlob(ciphertext)
	var out windows.DataBlob
	err := windows.CryptUnprotectData(&in, nil, nil, 0, nil, windows.CRYPTPROTECT_UI_FORBIDDEN, &out)
	if err != nil {
		return nil, amberr.NewOsApiError("CryptUnprotectData", osCode(err), err.Error())
	}
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(out.Data)))
	return copyBlob(&out), nil
}

func toBlob(b []byte) windows.DataBlob {
	blob := windows.DataBlob{Size: uint32(len(b))}
	if len(b) > 0 {
		blob.Data = &b[0]
	}
	return blob
}

func copyBlob(blob *windows.DataBlob) []byte {
	if blob.Size == 0 {
		return nil
	}
	out := make([]byte, blob.Size)
	copy(out, unsafe.Slice(blob.Data, blob.Size))
	return out
}

func osCode(err error) uint32 {
	if errno, ok := err.(windows.Errno); ok {
		return uint32(errno)
	}
	return 0
}
