package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the token payload issued for auction participants.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTProvider signs and verifies bearer tokens.
type JWTProvider struct {
	secret   []byte
	issuer   string
	audience string
}

// NewJWTProvider creates a provider for HMAC-signed tokens.
func NewJWTProvider(secret, issuer, audience string) *JWTProvider {
	return &JWTProvider{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}
}

// IssueToken mints a token for the given user and role.
func (p *JWTProvider) IssueToken(userID uuid.UUID, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ResolveActor verifies a bearer token and returns the actor it identifies.
func (p *JWTProvider) ResolveActor(tokenString string) (Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Actor{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return Actor{}, fmt.Errorf("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Actor{}, fmt.Errorf("parse subject: %w", err)
	}

	role := Role(claims.Role)
	switch role {
	case RoleAdmin, RoleHost, RoleCaptain, RoleViewer:
	default:
		role = RoleViewer
	}

	return Actor{UserID: userID, Role: role}, nil
}
