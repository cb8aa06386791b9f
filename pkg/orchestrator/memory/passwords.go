package memory

import (
	"crypto/rand"
	"math/big"
)

const passwordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// PasswordService generates admin passwords of a fixed length.
type PasswordService struct {
	length int
}

// NewPasswordService builds a generator for the configured length.
func NewPasswordService(length int) *PasswordService {
	return &PasswordService{length: length}
}

// Generate implements ports.PasswordGenerator.
func (p *PasswordService) Generate() string {
	out := make([]byte, p.length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordCharset))))
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			panic(err)
		}
		out[i] = passwordCharset[n.Int64()]
	}

	return string(out)
}

// AdminPassword reports the password last set for an instance.
func (o *Orchestrator) AdminPassword(id string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	password, ok := o.passwords[id]

	return password, ok
}
