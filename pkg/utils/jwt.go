package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"workflow-collab-backend/pkg/models"
)

// JWTService signs and validates the engine's bearer tokens.
type JWTService struct {
	secretKey []byte
}

// NewJWTService creates a JWT service with the given secret.
func NewJWTService(secretKey string) *JWTService {
	return &JWTService{
		secretKey: []byte(secretKey),
	}
}

// GenerateAccessToken issues a 15-minute access token.
func (j *JWTService) GenerateAccessToken(userID, email string, isSystemAdmin bool) (string, int64, error) {
	now := time.Now()
	expiry := now.Add(15 * time.Minute)

	claims := &models.TokenClaims{
		UserID:        userID,
		Email:         email,
		IsSystemAdmin: isSystemAdmin,
		Type:          "access",
		Exp:           expiry.Unix(),
		Iat:           now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", 0, fmt.Errorf("failed to generate access token: %w", err)
	}

	return tokenString, expiry.Unix(), nil
}

// ValidateToken parses and validates a token string.
func (j *JWTService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	if time.Now().Unix() > claims.Exp {
		return nil, fmt.Errorf("token expired")
	}

	return claims, nil
}

// PrincipalFromToken resolves a token into the caller's identity.
func (j *JWTService) PrincipalFromToken(tokenString string) (*models.Principal, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	return &models.Principal{
		UserID:        claims.UserID,
		Email:         claims.Email,
		IsSystemAdmin: claims.IsSystemAdmin,
	}, nil
}
