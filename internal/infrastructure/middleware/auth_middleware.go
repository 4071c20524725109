package middleware

import (
	"strings"

	"dancebattle/internal/core/domain"
	"dancebattle/internal/core/services"
	"dancebattle/pkg/errors"

	"github.com/gin-gonic/gin"
)

const playerClaimsKey = "player_claims"

// PlayerAuthMiddleware parses an optional bearer player token. A malformed or expired token
// is always rejected; a missing one only when required is set.
func PlayerAuthMiddleware(tokens services.PlayerTokenService, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if required {
				c.Error(errors.NewUnauthorizedError("authorization header required"))
				c.Abort()
				return
			}
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Error(errors.NewUnauthorizedError("invalid authorization header format"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidatePlayerToken(parts[1])
		if err != nil {
			c.Error(errors.NewUnauthorizedError(err.Error()))
			c.Abort()
			return
		}

		c.Set(playerClaimsKey, claims)
		c.Next()
	}
}

// AuthorizePlayer checks the claims stored by PlayerAuthMiddleware against the room and
// player a request acts on. Requests without claims pass when tokens are optional.
func AuthorizePlayer(c *gin.Context, roomID domain.RoomID, playerID domain.PlayerID) error {
	val, exists := c.Get(playerClaimsKey)
	if !exists {
		return nil
	}
	claims, ok := val.(*services.PlayerClaims)
	if !ok {
		return errors.NewUnauthorizedError("invalid player context")
	}
	if err := claims.Authorizes(roomID, playerID); err != nil {
		return errors.NewUnauthorizedError(err.Error())
	}
	return nil
}
