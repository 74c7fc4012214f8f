package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Station roles recognized by the clinic.
const (
	RoleAdmin      = "admin"
	RoleRegistrar  = "registrar"
	RoleNurse      = "nurse"
	RoleDoctor     = "doctor"
	RolePharmacist = "pharmacist"
	RoleLabTech    = "lab_tech"
)

// Claims is the JWT payload minted for a station login.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var validRoles = map[string]bool{
	RoleAdmin:      true,
	RoleRegistrar:  true,
	RoleNurse:      true,
	RoleDoctor:     true,
	RolePharmacist: true,
	RoleLabTech:    true,
}

// ValidRole reports whether role is one of the clinic station roles.
func ValidRole(role string) bool {
	return validRoles[role]
}

// MintToken signs an HS256 token for the named user with the given role.
func MintToken(secret, name, role string, ttl time.Duration) (string, error) {
	if !ValidRole(role) {
		return "", fmt.Errorf("invalid role: %s", role)
	}
	now := time.Now().UTC()
	claims := Claims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			Issuer:    "clinic-server",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token string, returning its claims.
func VerifyToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
