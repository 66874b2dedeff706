package usecase

import (
	"fmt"
	"time"

	authdomain "crono-backend/internal/auth/domain"

	"github.com/golang-jwt/jwt/v5"
)

// TokenUsecase validates the HS256 access tokens issued at login
type TokenUsecase interface {
	ValidateToken(tokenString string) (*authdomain.Principal, error)
	IssueToken(p authdomain.Principal, ttl time.Duration) (string, error)
}

type tokenUsecase struct {
	secret []byte
	now    func() time.Time
}

// NewTokenUsecase creates a TokenUsecase signing with secret
func NewTokenUsecase(secret string) TokenUsecase {
	return &tokenUsecase{secret: []byte(secret), now: time.Now}
}

// IssueToken signs {id, email, iat, exp}
func (u *tokenUsecase) IssueToken(p authdomain.Principal, ttl time.Duration) (string, error) {
	now := u.now()
	claims := jwt.MapClaims{
		"id":    p.OwnerID,
		"email": p.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.secret)
}

func (u *tokenUsecase) ValidateToken(tokenString string) (*authdomain.Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return u.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(u.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", authdomain.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, authdomain.ErrInvalidToken
	}

	// older tokens carry user_id instead of id
	ownerID, _ := claims["id"].(string)
	if ownerID == "" {
		ownerID, _ = claims["user_id"].(string)
	}
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing id claim", authdomain.ErrInvalidToken)
	}

	email, _ := claims["email"].(string)
	return &authdomain.Principal{OwnerID: ownerID, Email: email}, nil
}
