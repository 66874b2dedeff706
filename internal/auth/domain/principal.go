package domain

import "errors"

var ErrInvalidToken = errors.New("invalid token")

// Principal is the authenticated owner behind a request
type Principal struct {
	OwnerID string `json:"id"`
	Email   string `json:"email"`
}
