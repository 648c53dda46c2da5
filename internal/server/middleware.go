package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/identity"
	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// GatewayPrincipal reads the authenticated identity forwarded by the edge
// gateway. Requests without both headers are rejected before any handler
// runs.
func GatewayPrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		email := strings.TrimSpace(c.GetHeader("X-User-Email"))
		if rawID == "" || email == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		id, err := snowflake.ParseString(rawID)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(principalKey, identity.Principal{ID: id, Email: email})
		c.Next()
	}
}

// OptionalGatewayPrincipal attaches the forwarded identity when both headers
// are present but lets anonymous requests through. Token-authorized routes
// use it: the invitation token is the credential there.
func OptionalGatewayPrincipal() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		email := strings.TrimSpace(c.GetHeader("X-User-Email"))
		if rawID == "" && email == "" {
			c.Next()
			return
		}
		if rawID == "" || email == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		id, err := snowflake.ParseString(rawID)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(principalKey, identity.Principal{ID: id, Email: email})
		c.Next()
	}
}

func principalFrom(c *gin.Context) identity.Principal {
	value, ok := c.Get(principalKey)
	if !ok {
		return identity.Principal{}
	}
	principal, _ := value.(identity.Principal)
	return principal
}
