package router

import (
	"net/http"

	"valeria/controllers"

	"github.com/gin-gonic/gin"
)

// Authorizer blocks access to protected routes when the client account is disabled.
func Authorizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := controllers.GetClientLogged(c)
		if !ok {
			controllers.RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}

		if !client.Active {
			controllers.RespondError(c, "conta desativada", http.StatusForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
