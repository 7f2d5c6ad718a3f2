package controllers

import (
	"net/http"
	"strings"

	dbpkg "valeria/db"
	"valeria/models"

	"github.com/gin-gonic/gin"
)

const ctxClientKey = "auth_client"

// sessionToken extrai o token da request: header Authorization (API) ou
// cookie "token" (dashboard server-rendered).
func sessionToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	if cookie, err := c.Cookie("token"); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// AuthRequired validates the session token and loads the client from DB into context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}

		clientID, err := parseAccessToken(token, getJWTSecret())
		if err != nil {
			RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}

		db := dbpkg.DBInstance(c)
		if db == nil {
			RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
			c.Abort()
			return
		}
		var client models.Client
		if err := db.First(&client, clientID).Error; err != nil {
			RespondError(c, "unauthorized", http.StatusUnauthorized)
			c.Abort()
			return
		}

		c.Set(ctxClientKey, client)
		c.Next()
	}
}

// GetClientLogged returns the client loaded by AuthRequired.
func GetClientLogged(c *gin.Context) (models.Client, bool) {
	v, ok := c.Get(ctxClientKey)
	if !ok {
		return models.Client{}, false
	}
	client, ok := v.(models.Client)
	return client, ok
}
