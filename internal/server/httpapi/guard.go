package httpapi

import (
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/gin-gonic/gin"
)

const profileKey = "user"

// AccessGuard admits requests carrying a valid access token for an existing
// user and stores that user's profile in the context. Every rejection looks
// the same to the client.
func AccessGuard(tokens TokenVerifier, users UserService, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token := bearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if token == "" {
			RespondError(c, common.ErrorUnauthorized)
			return
		}

		payload, err := tokens.Verify(token, auth.Access)
		if err != nil {
			logger.Warn(ctx, "invalid token", logging.ErrorAttrs(err)...)
			RespondError(c, common.ErrorUnauthorized)
			return
		}

		profile, err := users.GetProfile(ctx, payload.UserID)
		if err != nil {
			logger.Warn(ctx, "invalid token", append([]any{"user_id", payload.UserID}, logging.ErrorAttrs(err)...)...)
			RespondError(c, common.ErrorUnauthorized)
			return
		}

		c.Set(profileKey, profile)
		c.Next()
	}
}

// ProfileFrom returns the profile stored by AccessGuard.
func ProfileFrom(c *gin.Context) (*models.Profile, bool) {
	v, ok := c.Get(profileKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*models.Profile)
	return p, ok
}

// bearerToken strips an optional "Bearer " scheme. Without one the whole
// header value is the token.
func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	const scheme = "Bearer "
	if len(header) >= len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}
	return header
}
