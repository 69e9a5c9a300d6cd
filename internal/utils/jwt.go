package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TerminalIdentity is what a terminal token asserts: which restaurant the
// device works for and which device it is.
type TerminalIdentity struct {
	RestaurantID uuid.UUID
	TerminalID   string
}

type terminalClaims struct {
	RestaurantID string `json:"restaurant_id"`
	TerminalID   string `json:"terminal_id"`
	jwt.RegisteredClaims
}

// GenerateTerminalToken creates a signed JWT for a terminal of a restaurant.
func GenerateTerminalToken(secret string, identity TerminalIdentity, ttl time.Duration) (string, error) {
	claims := &terminalClaims{
		RestaurantID: identity.RestaurantID.String(),
		TerminalID:   identity.TerminalID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.TerminalID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseTerminalToken validates the token and returns the embedded identity.
func ParseTerminalToken(secret, tokenString string) (TerminalIdentity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &terminalClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return TerminalIdentity{}, err
	}

	claims, ok := token.Claims.(*terminalClaims)
	if !ok || !token.Valid {
		return TerminalIdentity{}, jwt.ErrTokenInvalidClaims
	}

	restaurantID, err := uuid.Parse(claims.RestaurantID)
	if err != nil {
		return TerminalIdentity{}, jwt.ErrTokenInvalidClaims
	}

	return TerminalIdentity{RestaurantID: restaurantID, TerminalID: claims.TerminalID}, nil
}
