package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"onboarding/internal/domain"
	"onboarding/internal/store"
	"onboarding/internal/store/storetest"

	"github.com/google/uuid"
)

func seedUser(t *testing.T, st *store.Store, username, email, appID string) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:  username,
		Email:     email,
		AppNameID: appID,
		Profile: domain.Profile{
			Timezone:               "utc",
			PreferredLanguage:      "en",
			NotificationPreference: "email",
		},
	}
	if err := st.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestFindByEmailOrUsername(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice", "alice@example.com", "ABC123")

	for _, tc := range []struct{ email, username string }{
		{"alice@example.com", "someone"},
		{"other@example.com", "alice"},
	} {
		got, err := st.Users().FindByEmailOrUsername(ctx, tc.email, tc.username)
		if err != nil {
			t.Fatalf("find %v: %v", tc, err)
		}
		if got.ID != alice.ID {
			t.Fatalf("expected alice, got %s", got.ID)
		}
	}

	if _, err := st.Users().FindByEmailOrUsername(ctx, "bob@example.com", "bob"); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestTenantIDAndUsernameChecks(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()
	alice := seedUser(t, st, "alice", "alice@example.com", "ABC123")
	seedUser(t, st, "bob", "bob@example.com", "XYZ789")

	exists, err := st.Users().ExistsByTenantID(ctx, "ABC123")
	if err != nil || !exists {
		t.Fatalf("expected tenant id to exist: %v %v", exists, err)
	}
	exists, err = st.Users().ExistsByTenantID(ctx, "ZZZZZZ")
	if err != nil || exists {
		t.Fatalf("expected tenant id to be free: %v %v", exists, err)
	}

	taken, err := st.Users().UsernameTaken(ctx, "alice", alice.ID)
	if err != nil || taken {
		t.Fatalf("own username should not count as taken: %v %v", taken, err)
	}
	taken, err = st.Users().UsernameTaken(ctx, "bob", alice.ID)
	if err != nil || !taken {
		t.Fatalf("expected bob to be taken: %v %v", taken, err)
	}
}

func TestConsumeOTPIsSingleUse(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()
	u := seedUser(t, st, "alice", "alice@example.com", "ABC123")

	now := time.Now().UTC()
	if err := st.Users().SaveOTP(ctx, u.ID, "123456", now, now.Add(10*time.Minute)); err != nil {
		t.Fatalf("save otp: %v", err)
	}

	ok, err := st.Users().ConsumeOTP(ctx, u.ID, "654321")
	if err != nil || ok {
		t.Fatalf("wrong code must not consume: %v %v", ok, err)
	}
	ok, err = st.Users().ConsumeOTPAndVerify(ctx, u.ID, "123456")
	if err != nil || !ok {
		t.Fatalf("expected consume: %v %v", ok, err)
	}
	ok, err = st.Users().ConsumeOTPAndVerify(ctx, u.ID, "123456")
	if err != nil || ok {
		t.Fatalf("second consume must fail: %v %v", ok, err)
	}

	got, err := st.Users().GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsVerified {
		t.Fatalf("expected verified user")
	}
	if got.OTPCode != nil || got.OTPExpiresAt != nil || got.OTPCreatedAt != nil {
		t.Fatalf("expected cleared otp fields, got %+v", got)
	}
}

func TestConsumeOTPDoesNotVerify(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()
	u := seedUser(t, st, "alice", "alice@example.com", "ABC123")

	now := time.Now().UTC()
	if err := st.Users().SaveOTP(ctx, u.ID, "111111", now, now.Add(time.Minute)); err != nil {
		t.Fatalf("save otp: %v", err)
	}
	ok, err := st.Users().ConsumeOTP(ctx, u.ID, "111111")
	if err != nil || !ok {
		t.Fatalf("expected consume: %v %v", ok, err)
	}
	got, _ := st.Users().GetByID(ctx, u.ID)
	if got.IsVerified {
		t.Fatalf("plain consume must not verify")
	}
}

func TestSaveOTPUnknownUser(t *testing.T) {
	st := storetest.Open(t)
	now := time.Now()
	err := st.Users().SaveOTP(context.Background(), uuid.New(), "123456", now, now)
	if !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestSaveProfileAppliesOnce(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()
	u := seedUser(t, st, "alice", "alice@example.com", "ABC123")

	p := domain.Profile{BusinessName: "Acme", Country: "IN", Timezone: "utc", PreferredLanguage: "en", NotificationPreference: "email"}
	ok, err := st.Users().SaveProfile(ctx, u.ID, "alice2", "555", p)
	if err != nil || !ok {
		t.Fatalf("first save: %v %v", ok, err)
	}
	p.BusinessName = "Other"
	ok, err = st.Users().SaveProfile(ctx, u.ID, "alice3", "555", p)
	if err != nil || ok {
		t.Fatalf("second save must be a no-op: %v %v", ok, err)
	}

	got, _ := st.Users().GetByID(ctx, u.ID)
	if !got.ProfileCompleted || got.BusinessName != "Acme" || got.Username != "alice2" {
		t.Fatalf("unexpected profile state: %+v", got)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx *store.Store) error {
		u := &domain.User{Username: "carol", Email: "carol@example.com", AppNameID: "CAR001"}
		if err := tx.Users().Create(ctx, u); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := st.Users().GetByEmail(ctx, "carol@example.com"); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
}

func TestUpsertPassword(t *testing.T) {
	st := storetest.Open(t)
	ctx := context.Background()
	u := seedUser(t, st, "alice", "alice@example.com", "ABC123")

	cred := &domain.PasswordCredential{UserID: u.ID, Algo: "bcrypt", Hash: []byte("old"), PasswordVer: 1}
	if err := st.Credentials().UpsertPassword(ctx, cred); err != nil {
		t.Fatalf("insert: %v", err)
	}
	next := &domain.PasswordCredential{UserID: u.ID, Algo: "argon2id", Hash: []byte("new"), Salt: []byte("salt"), PasswordVer: 2}
	if err := st.Credentials().UpsertPassword(ctx, next); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := st.Credentials().GetPasswordByUserID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Algo != "argon2id" || string(got.Hash) != "new" || got.PasswordVer != 2 {
		t.Fatalf("unexpected credential: %+v", got)
	}
}
