package router

import (
	"net/http"

	"valeria/controllers"

	"github.com/gin-gonic/gin"
)

// Adminizer blocks access when the client is not a platform operator.
func Adminizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := controllers.GetClientLogged(c)
		if !ok {
			controllers.RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}
		if !client.Admin {
			controllers.RespondError(c, "admin required", http.StatusForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
