package services

import (
	"errors"
	"time"

	"dancebattle/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrTokenMismatch = errors.New("token does not match room or player")
)

// PlayerTokenService issues the bearer tokens that bind a connection to a (room, player) pair.
type PlayerTokenService interface {
	IssuePlayerToken(roomID domain.RoomID, playerID domain.PlayerID) (string, error)
	ValidatePlayerToken(tokenString string) (*PlayerClaims, error)
}

type PlayerClaims struct {
	RoomID   domain.RoomID   `json:"room_id"`
	PlayerID domain.PlayerID `json:"player_id"`
	jwt.RegisteredClaims
}

// Authorizes reports whether the claims were issued for this room and player.
func (c *PlayerClaims) Authorizes(roomID domain.RoomID, playerID domain.PlayerID) error {
	if c.RoomID != roomID || c.PlayerID != playerID {
		return ErrTokenMismatch
	}
	return nil
}

type playerTokenService struct {
	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewPlayerTokenService(jwtSecret string, tokenTTL time.Duration) PlayerTokenService {
	return &playerTokenService{
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

func (s *playerTokenService) IssuePlayerToken(roomID domain.RoomID, playerID domain.PlayerID) (string, error) {
	now := s.now()
	claims := &PlayerClaims{
		RoomID:   roomID,
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(playerID),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *playerTokenService) ValidatePlayerToken(tokenString string) (*PlayerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PlayerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*PlayerClaims); ok && token.Valid && claims.RoomID != "" && claims.PlayerID != "" {
		return claims, nil
	}
	return nil, ErrInvalidToken
}
