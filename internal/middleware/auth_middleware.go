package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "focusify/internal/errors"
)

const UserIDContextKey = "userID"

// TokenParser resolves a bearer token to the owning user id.
type TokenParser interface {
	ParseToken(token string) (string, *apperrors.APIError)
}

func Auth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, apiErr := bearerToken(c.GetHeader("Authorization"))
		if apiErr != nil {
			abort(c, apiErr)
			return
		}

		userID, apiErr := tokens.ParseToken(token)
		if apiErr != nil {
			abort(c, apiErr)
			return
		}

		c.Set(UserIDContextKey, userID)
		c.Next()
	}
}

func bearerToken(header string) (string, *apperrors.APIError) {
	if header == "" {
		return "", apperrors.Unauthorized("missing authorization header")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" {
		return "", apperrors.Unauthorized("invalid authorization format")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.Unauthorized("invalid authorization format")
	}
	return token, nil
}

// UserID returns the authenticated owner of the request, or "" outside Auth.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDContextKey)
}

func abort(c *gin.Context, apiErr *apperrors.APIError) {
	c.AbortWithStatusJSON(apiErr.Status, apiErr.Body())
}
