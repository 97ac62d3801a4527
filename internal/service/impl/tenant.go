package impl

import (
	"context"
	"crypto/rand"
	"math/big"

	"onboarding/internal/domain"
)

const (
	tenantAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tenantIDLength    = 6
	maxTenantAttempts = 10
)

func GenerateTenantID() (string, error) {
	max := big.NewInt(int64(len(tenantAlphabet)))
	buf := make([]byte, tenantIDLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = tenantAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func allocateTenantID(ctx context.Context, users userStore, gen func() (string, error)) (string, error) {
	for range maxTenantAttempts {
		id, err := gen()
		if err != nil {
			return "", err
		}
		taken, err := users.ExistsByTenantID(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", domain.ErrTenantIDExhausted
}
