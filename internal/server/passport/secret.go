package passport

import "github.com/dmitrijs2005/idlink/internal/common"

// SecretGenerator produces opaque random secrets. kind names the purpose,
// e.g. "password".
type SecretGenerator interface {
	GenerateSecret(kind string) (string, error)
}

// RandomSecrets draws Size random bytes and hex-encodes them.
type RandomSecrets struct {
	Size int
}

func (r RandomSecrets) GenerateSecret(kind string) (string, error) {
	size := r.Size
	if size <= 0 {
		size = 32
	}
	return common.RandomHex(size)
}
