package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "sticker-cloner-admin"

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrNotOwner     = errors.New("token subject is not the owner")
)

// ===== JWT primitives =====

type AuthConfig struct {
	HMACSecret []byte
	OwnerID    int64
	TTL        time.Duration
}

// AuthManager mints and checks bearer tokens for the admin API. Only a
// token whose subject is the owner's Telegram id is accepted.
type AuthManager struct {
	cfg AuthConfig
	now func() time.Time
}

func NewAuthManager(secret string, ownerID int64, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthManager{
		cfg: AuthConfig{HMACSecret: []byte(secret), OwnerID: ownerID, TTL: ttl},
		now: time.Now,
	}
}

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Mint signs a token for subject.
func (a *AuthManager) Mint(subject int64) (string, error) {
	now := a.now()
	claims := AdminClaims{
		Role: "owner",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
			Subject:   strconv.FormatInt(subject, 10),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.HMACSecret)
}

// ParseFromRequest reads "Authorization: Bearer <jwt>" and checks that the
// token belongs to the owner.
func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return nil, ErrMissingToken
	}
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, ErrInvalidToken
	}
	claims, err := a.parse(strings.TrimSpace(hdr[7:]))
	if err != nil {
		return nil, err
	}
	if claims.Subject != strconv.FormatInt(a.cfg.OwnerID, 10) {
		return nil, ErrNotOwner
	}
	return claims, nil
}

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
