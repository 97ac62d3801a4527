package impl

import (
	"context"
	"errors"
	"time"

	"onboarding/internal/domain"
	"onboarding/internal/store"

	"github.com/google/uuid"
)

type dataStore interface {
	storeTx
	WithTx(ctx context.Context, fn func(tx storeTx) error) error
}

type storeTx interface {
	Users() userStore
	Credentials() credentialStore
}

type userStore interface {
	Create(ctx context.Context, usr *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByEmailOrUsername(ctx context.Context, email, username string) (*domain.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	ExistsByTenantID(ctx context.Context, appNameID string) (bool, error)
	UsernameTaken(ctx context.Context, username string, except uuid.UUID) (bool, error)
	SaveOTP(ctx context.Context, userID uuid.UUID, code string, createdAt, expiresAt time.Time) error
	ConsumeOTP(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	ConsumeOTPAndVerify(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	ClearOTP(ctx context.Context, userID uuid.UUID) error
	SaveProfile(ctx context.Context, userID uuid.UUID, username, phone string, p domain.Profile) (bool, error)
}

type credentialStore interface {
	UpsertPassword(ctx context.Context, c *domain.PasswordCredential) error
	GetPasswordByUserID(ctx context.Context, userID uuid.UUID) (*domain.PasswordCredential, error)
}

type gormStoreAdapter struct {
	store *store.Store
}

func (g gormStoreAdapter) Users() userStore { return g.store.Users() }

func (g gormStoreAdapter) Credentials() credentialStore { return g.store.Credentials() }

func (g gormStoreAdapter) WithTx(ctx context.Context, fn func(tx storeTx) error) error {
	if g.store == nil {
		return errors.New("nil store")
	}
	return g.store.WithTx(ctx, func(tx *store.Store) error {
		return fn(gormTxAdapter{tx: tx})
	})
}

type gormTxAdapter struct {
	tx *store.Store
}

func (g gormTxAdapter) Users() userStore { return g.tx.Users() }

func (g gormTxAdapter) Credentials() credentialStore { return g.tx.Credentials() }

func mapUserErr(err error) error {
	if errors.Is(err, store.ErrRecordNotFound) {
		return domain.ErrUserNotFound
	}
	return err
}
