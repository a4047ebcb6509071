package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pulsepoll/internal/model"
)

// AuthService issues and validates admin tokens for the poll-management
// path. Voters stay anonymous; only poll administration is authenticated.
type AuthService struct {
	adminUsername string
	adminPassword string
	jwtSecret     []byte
}

// NewAuthService creates a new auth service.
func NewAuthService(username, password, jwtSecret string) *AuthService {
	return &AuthService{
		adminUsername: username,
		adminPassword: password,
		jwtSecret:     []byte(jwtSecret),
	}
}

// Login validates credentials and returns a signed admin token.
func (s *AuthService) Login(username, password string) (*model.LoginResponse, error) {
	if username != s.adminUsername || password != s.adminPassword {
		return nil, ErrInvalidCredentials
	}

	claims := &model.AdminClaims{
		AdminID: "admin_" + uuid.New().String()[:8],
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &model.LoginResponse{Token: tokenString}, nil
}

// ValidateToken validates an admin JWT and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*model.AdminClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.AdminClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.AdminClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
