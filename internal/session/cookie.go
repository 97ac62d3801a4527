package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultCookieName = "onb_session"

var ErrInvalidCookie = errors.New("invalid session cookie")

type CookieConfig struct {
	Name     string
	Secret   []byte
	Issuer   string
	Secure   bool
	Lifetime time.Duration
}

// CookieCodec signs session ids into HS256 tokens carried by the session cookie.
type CookieCodec struct {
	cfg CookieConfig
}

type cookieClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func NewCookieCodec(cfg CookieConfig) (*CookieCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	return &CookieCodec{cfg: cfg}, nil
}

func (c *CookieCodec) Name() string { return c.cfg.Name }

func (c *CookieCodec) Encode(sessionID string) (string, error) {
	now := time.Now()
	claims := cookieClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.Lifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
}

// Decode returns the session id of a token this codec signed.
func (c *CookieCodec) Decode(token string) (string, error) {
	var claims cookieClaims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
	}
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return "", errors.Join(ErrInvalidCookie, err)
	}
	if claims.SessionID == "" {
		return "", ErrInvalidCookie
	}
	return claims.SessionID, nil
}

func (c *CookieCodec) Cookie(sessionID string) (*http.Cookie, error) {
	token, err := c.Encode(sessionID)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     c.cfg.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.cfg.Lifetime / time.Second),
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

func (c *CookieCodec) Expired() *http.Cookie {
	return &http.Cookie{
		Name:     c.cfg.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
