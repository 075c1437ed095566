package auth

import "github.com/gin-gonic/gin"

// Gin context keys set by AuthRequired.
const (
	userIDKey      = "userID"
	accessTokenKey = "accessToken"
)

// GetUserID returns the booking backend's id of the authenticated user, or empty string.
// Drafts are owned by this id, so one user can never read another's draft.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// GetAccessToken returns the caller's bearer token as it arrived, or empty string.
// The booking backend scopes slot holds and bookings to this token, so every
// reserve, release and booking call made for the request must carry it unchanged.
// A hold taken with one user's token can only be released with that same token.
func GetAccessToken(c *gin.Context) string {
	return c.GetString(accessTokenKey)
}
