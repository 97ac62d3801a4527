package impl

import (
	"context"
	"sync"
	"time"

	"onboarding/internal/domain"
	"onboarding/internal/events"
	"onboarding/internal/service"
	"onboarding/internal/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type memoryStore struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*domain.User
	emailIndex  map[string]uuid.UUID
	usernameIdx map[string]uuid.UUID
	tenantIdx   map[string]uuid.UUID
	credentials map[uuid.UUID]*domain.PasswordCredential

	reads int
}

type storeSnapshot struct {
	users       map[uuid.UUID]*domain.User
	emailIndex  map[string]uuid.UUID
	usernameIdx map[string]uuid.UUID
	tenantIdx   map[string]uuid.UUID
	credentials map[uuid.UUID]*domain.PasswordCredential
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:       make(map[uuid.UUID]*domain.User),
		emailIndex:  make(map[string]uuid.UUID),
		usernameIdx: make(map[string]uuid.UUID),
		tenantIdx:   make(map[string]uuid.UUID),
		credentials: make(map[uuid.UUID]*domain.PasswordCredential),
	}
}

func (m *memoryStore) Users() userStore { return &memoryUserStore{store: m} }

func (m *memoryStore) Credentials() credentialStore { return &memoryCredentialStore{store: m} }

func (m *memoryStore) WithTx(ctx context.Context, fn func(tx storeTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *memoryStore) snapshot() storeSnapshot {
	users := make(map[uuid.UUID]*domain.User, len(m.users))
	for id, user := range m.users {
		copy := *user
		users[id] = &copy
	}
	creds := make(map[uuid.UUID]*domain.PasswordCredential, len(m.credentials))
	for id, cred := range m.credentials {
		copy := *cred
		creds[id] = &copy
	}
	return storeSnapshot{
		users:       users,
		emailIndex:  cloneIndex(m.emailIndex),
		usernameIdx: cloneIndex(m.usernameIdx),
		tenantIdx:   cloneIndex(m.tenantIdx),
		credentials: creds,
	}
}

func cloneIndex(in map[string]uuid.UUID) map[string]uuid.UUID {
	out := make(map[string]uuid.UUID, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memoryStore) restore(s storeSnapshot) {
	m.users = s.users
	m.emailIndex = s.emailIndex
	m.usernameIdx = s.usernameIdx
	m.tenantIdx = s.tenantIdx
	m.credentials = s.credentials
}

func (m *memoryStore) userByEmail(email string) (*domain.User, bool) {
	id, ok := m.emailIndex[email]
	if !ok {
		return nil, false
	}
	user := *m.users[id]
	return &user, true
}

func (m *memoryStore) credentialByUserID(userID uuid.UUID) (*domain.PasswordCredential, bool) {
	cred, ok := m.credentials[userID]
	if !ok {
		return nil, false
	}
	copy := *cred
	return &copy, true
}

// seed inserts a verified or unverified user with the given credential.
func (m *memoryStore) seed(user *domain.User, cred *domain.PasswordCredential) {
	_ = m.Users().Create(context.Background(), user)
	if cred != nil {
		cred.UserID = user.ID
		_ = m.Credentials().UpsertPassword(context.Background(), cred)
	}
}

type memoryUserStore struct {
	store *memoryStore
}

func (u *memoryUserStore) get(id uuid.UUID) (*domain.User, error) {
	u.store.reads++
	usr, ok := u.store.users[id]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	copy := *usr
	return &copy, nil
}

func (u *memoryUserStore) Create(ctx context.Context, usr *domain.User) error {
	if _, ok := u.store.emailIndex[usr.Email]; ok {
		return gorm.ErrDuplicatedKey
	}
	if _, ok := u.store.usernameIdx[usr.Username]; ok {
		return gorm.ErrDuplicatedKey
	}
	if usr.ID == uuid.Nil {
		usr.ID = uuid.New()
	}
	copy := *usr
	u.store.users[usr.ID] = &copy
	u.store.emailIndex[usr.Email] = usr.ID
	u.store.usernameIdx[usr.Username] = usr.ID
	u.store.tenantIdx[usr.AppNameID] = usr.ID
	return nil
}

func (u *memoryUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return u.get(id)
}

func (u *memoryUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, ok := u.store.emailIndex[email]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	return u.get(id)
}

func (u *memoryUserStore) FindByEmailOrUsername(ctx context.Context, email, username string) (*domain.User, error) {
	if id, ok := u.store.emailIndex[email]; ok {
		return u.get(id)
	}
	if id, ok := u.store.usernameIdx[username]; ok {
		return u.get(id)
	}
	return nil, store.ErrRecordNotFound
}

func (u *memoryUserStore) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	return u.FindByEmailOrUsername(ctx, identifier, identifier)
}

func (u *memoryUserStore) ExistsByTenantID(ctx context.Context, appNameID string) (bool, error) {
	_, ok := u.store.tenantIdx[appNameID]
	return ok, nil
}

func (u *memoryUserStore) UsernameTaken(ctx context.Context, username string, except uuid.UUID) (bool, error) {
	id, ok := u.store.usernameIdx[username]
	return ok && id != except, nil
}

func (u *memoryUserStore) SaveOTP(ctx context.Context, userID uuid.UUID, code string, createdAt, expiresAt time.Time) error {
	usr, ok := u.store.users[userID]
	if !ok {
		return store.ErrRecordNotFound
	}
	usr.OTPCode = &code
	usr.OTPCreatedAt = &createdAt
	usr.OTPExpiresAt = &expiresAt
	return nil
}

func (u *memoryUserStore) ConsumeOTP(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	usr, ok := u.store.users[userID]
	if !ok || usr.OTPCode == nil || *usr.OTPCode != code {
		return false, nil
	}
	usr.OTPCode, usr.OTPCreatedAt, usr.OTPExpiresAt = nil, nil, nil
	return true, nil
}

func (u *memoryUserStore) ConsumeOTPAndVerify(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	ok, err := u.ConsumeOTP(ctx, userID, code)
	if ok {
		u.store.users[userID].IsVerified = true
	}
	return ok, err
}

func (u *memoryUserStore) ClearOTP(ctx context.Context, userID uuid.UUID) error {
	if usr, ok := u.store.users[userID]; ok {
		usr.OTPCode, usr.OTPCreatedAt, usr.OTPExpiresAt = nil, nil, nil
	}
	return nil
}

func (u *memoryUserStore) SaveProfile(ctx context.Context, userID uuid.UUID, username, phone string, p domain.Profile) (bool, error) {
	usr, ok := u.store.users[userID]
	if !ok || usr.ProfileCompleted {
		return false, nil
	}
	delete(u.store.usernameIdx, usr.Username)
	usr.Username = username
	usr.Phone = phone
	usr.Profile = p
	usr.ProfileCompleted = true
	u.store.usernameIdx[username] = userID
	return true, nil
}

type memoryCredentialStore struct {
	store *memoryStore
}

func (c *memoryCredentialStore) UpsertPassword(ctx context.Context, cred *domain.PasswordCredential) error {
	copy := *cred
	c.store.credentials[cred.UserID] = &copy
	return nil
}

func (c *memoryCredentialStore) GetPasswordByUserID(ctx context.Context, userID uuid.UUID) (*domain.PasswordCredential, error) {
	cred, ok := c.store.credentials[userID]
	if !ok {
		return nil, store.ErrRecordNotFound
	}
	copy := *cred
	return &copy, nil
}

type stubPasswordService struct {
	hashFunc   func(password string) (hash, salt, paramsJSON []byte, algo string, ver int, err error)
	verifyFunc func(password string, cred service.PasswordCredential) (rehashNeeded bool, ok bool)

	hashCalls   []string
	verifyCalls []string
}

func (s *stubPasswordService) Hash(password string) (hash, salt, paramsJSON []byte, algo string, ver int, err error) {
	s.hashCalls = append(s.hashCalls, password)
	if s.hashFunc != nil {
		return s.hashFunc(password)
	}
	return []byte("hash:" + password), []byte("salt"), []byte("{}"), AlgoArgon2id, 1, nil
}

func (s *stubPasswordService) Verify(password string, cred service.PasswordCredential) (rehashNeeded bool, ok bool) {
	s.verifyCalls = append(s.verifyCalls, password)
	if s.verifyFunc != nil {
		return s.verifyFunc(password, cred)
	}
	return false, string(cred.GetHash()) == "hash:"+password
}

type sentMessage struct {
	to   string
	kind domain.MessageKind
	code string
}

type stubNotifier struct {
	err  error
	sent []sentMessage
}

func (n *stubNotifier) Send(ctx context.Context, to string, kind domain.MessageKind, data map[string]any) error {
	if n.err != nil {
		return n.err
	}
	code, _ := data["Code"].(string)
	n.sent = append(n.sent, sentMessage{to: to, kind: kind, code: code})
	return nil
}

func (n *stubNotifier) last() sentMessage {
	if len(n.sent) == 0 {
		return sentMessage{}
	}
	return n.sent[len(n.sent)-1]
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType())
	}
	return out
}

type fixture struct {
	store    *memoryStore
	notifier *stubNotifier
	events   *recordingPublisher
	pw       *stubPasswordService
	otp      *OTPServiceImpl
	auth     *AuthServiceImpl
}

func newFixture() *fixture {
	f := &fixture{
		store:    newMemoryStore(),
		notifier: &stubNotifier{},
		events:   &recordingPublisher{},
		pw:       &stubPasswordService{},
	}
	f.otp = newOTPService(f.store, f.notifier, f.events, DefaultOTPExpiry)
	f.auth = newAuthService(f.store, f.pw, f.otp, f.events)
	return f
}
