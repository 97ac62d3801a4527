package impl

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"

	"onboarding/internal/service"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgoArgon2id = "argon2id"
	AlgoBcrypt   = "bcrypt"
)

type Argon2Params struct {
	// Stored alongside the hash so verification uses the cost it was hashed with.
	Time    uint32 `json:"t"` // iterations
	Memory  uint32 `json:"m"` // KiB (e.g., 64*1024 = 64MB)
	Threads uint8  `json:"p"` // parallelism
	KeyLen  uint32 `json:"k"` // bytes (e.g., 32)
	SaltLen uint32 `json:"s"` // bytes (e.g., 16)
}

var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024, // 64 MiB
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

type PasswordServiceImpl struct {
	currentVer int          // bump when you change policy
	cur        Argon2Params // current policy used for new hashes
	algoName   string
}

func NewPasswordServiceArgon2id() *PasswordServiceImpl {
	return NewPasswordService(DefaultArgon2Params)
}

func NewPasswordService(params Argon2Params) *PasswordServiceImpl {
	return &PasswordServiceImpl{
		currentVer: 1,
		algoName:   AlgoArgon2id,
		cur:        params,
	}
}

func (p *PasswordServiceImpl) Hash(password string) (hash, salt, paramsJSON []byte, algo string, ver int, err error) {
	if password == "" {
		return nil, nil, nil, "", 0, ErrEmptyPassword
	}
	salt = make([]byte, p.cur.SaltLen)
	if _, err = rand.Read(salt); err != nil {
		return nil, nil, nil, "", 0, err
	}
	hash = argon2.IDKey([]byte(password), salt, p.cur.Time, p.cur.Memory, p.cur.Threads, p.cur.KeyLen)
	paramsJSON, err = json.Marshal(p.cur)
	if err != nil {
		return nil, nil, nil, "", 0, err
	}
	return hash, salt, paramsJSON, p.algoName, p.currentVer, nil
}

// Verify accepts the current argon2id policy and legacy bcrypt hashes. A
// successful bcrypt match always asks for a rehash.
func (p *PasswordServiceImpl) Verify(password string, cred service.PasswordCredential) (rehashNeeded bool, ok bool) {
	switch cred.GetAlgo() {
	case AlgoBcrypt:
		ok = bcrypt.CompareHashAndPassword(cred.GetHash(), []byte(password)) == nil
		return ok, ok
	case p.algoName:
	default:
		return false, false
	}

	var stored Argon2Params
	if err := json.Unmarshal(cred.GetParamsJSON(), &stored); err != nil {
		return false, false
	}
	calculated := argon2.IDKey([]byte(password), cred.GetSalt(), stored.Time, stored.Memory, stored.Threads, stored.KeyLen)
	ok = subtle.ConstantTimeCompare(calculated, cred.GetHash()) == 1

	// Rehash if policy changed (params or version)
	rehashNeeded = ok && (cred.GetPasswordVer() != p.currentVer ||
		stored.Time != p.cur.Time ||
		stored.Memory != p.cur.Memory ||
		stored.Threads != p.cur.Threads ||
		stored.KeyLen != p.cur.KeyLen ||
		stored.SaltLen != p.cur.SaltLen)

	return rehashNeeded, ok
}
