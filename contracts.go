package automation

import (
	"context"

	"github.com/nominahr/pg-hr-automation/internal/hrdb"
)

//go:generate mockgen -source=contracts.go -destination=mocks/contracts.go -package=mocks

// SensitiveCodec is the injected encryption capability. The worker never
// implements cryptography itself; internal/sealed provides the default.
type SensitiveCodec interface {
	Encrypt(plaintext string) (string, error)

	// Decrypt returns the plaintext for an encrypted value and passes
	// unencrypted values through unchanged.
	Decrypt(value string) (string, error)

	// IsEncrypted reports whether a value carries the ciphertext marker.
	IsEncrypted(value string) bool

	// Hash computes the lookup hash used for equality search without
	// decryption.
	Hash(value string) string

	SchemeVersion() string
}

// Directory resolves access-control configuration: the target application
// and its default employee role. Read-only to the worker.
type Directory interface {
	ResolveApplication(ctx context.Context, code string) (*hrdb.Application, error)
	DefaultEmployeeRole(ctx context.Context, applicationID string) (*hrdb.ApplicationRole, error)
}
