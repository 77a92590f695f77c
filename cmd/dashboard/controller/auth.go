package controller

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	errAdminDisabled = errors.New("admin api disabled: admin_token is not configured")
	errAdminToken    = errors.New("missing or invalid admin token")
)

// authorize guards the admin routes with a static bearer token.
// An empty token refuses every request.
func authorize(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			fail(c, http.StatusForbidden, errAdminDisabled)
			return
		}
		got, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="onlinetracker"`)
			fail(c, http.StatusUnauthorized, errAdminToken)
			return
		}
		c.Next()
	}
}
