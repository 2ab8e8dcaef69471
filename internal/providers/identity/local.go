package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yoockh/virtualvisits/internal/models"
)

const localIssuer = "virtualvisits-local"

// LocalClaims are carried by tokens minted without a communication platform.
type LocalClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scp"`
}

// LocalProvider mints HS256 tokens for development runs without a platform
// connection string. The tokens are not accepted by the platform.
type LocalProvider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewLocalProvider(secret string, ttl time.Duration) *LocalProvider {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LocalProvider{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (p *LocalProvider) CreateUserAndToken(_ context.Context, scopes []string) (*models.UserToken, error) {
	if len(p.secret) == 0 {
		return nil, errors.New("local token secret is not set")
	}
	now := p.now().UTC()
	userID := "8:acs:local_" + uuid.NewString()
	exp := now.Add(p.ttl)

	claims := LocalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    localIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Scopes: scopes,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return nil, err
	}
	return &models.UserToken{
		User:      models.CommunicationUser{CommunicationUserID: userID},
		Token:     signed,
		ExpiresOn: exp,
	}, nil
}
