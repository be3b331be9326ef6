package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// ScopeEdit is the only scope issued: the holder may change the scene.
const ScopeEdit = "scene:edit"

// Service issues and checks HS256 edit tokens. A token is bound to one scene.
type Service struct {
	jwtSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewService(jwtSecret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
		now:       time.Now,
	}
}

type sceneClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// IssueSceneToken signs an edit token for sceneID.
func (s *Service) IssueSceneToken(sceneID string) (string, error) {
	now := s.now()
	claims := sceneClaims{
		Scope: ScopeEdit,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sceneID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateSceneToken checks that tokenString is a live edit token for sceneID.
func (s *Service) ValidateSceneToken(tokenString, sceneID string) error {
	var claims sceneClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	if claims.Subject != sceneID {
		return fmt.Errorf("%w: token is for another scene", ErrInvalidToken)
	}
	if claims.Scope != ScopeEdit {
		return fmt.Errorf("%w: missing edit scope", ErrInvalidToken)
	}
	return nil
}
