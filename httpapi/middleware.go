package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-leadgen/core"
)

const userContextKey = "leadgen.user"

// RequireUser resolves the bearer token to a stored user or aborts with 401.
func RequireUser(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by RequireUser.
func CurrentUser(c *gin.Context) (core.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return core.User{}, false
	}
	user, ok := value.(core.User)
	return user, ok
}
