package controllers

import (
	"net/http"
	"time"

	dbpkg "valeria/db"
	"valeria/models"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type LoginResponse struct {
	Token        string        `json:"token"`
	RefreshToken string        `json:"refresh_token"`
	Client       models.Client `json:"client"`
}

// POST /api/login
// Autentica o tenant e devolve access token (também gravado em cookie,
// que é o que o dashboard usa) + refresh token.
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		RespondError(c, "email e password são obrigatórios", http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var client models.Client
	if err := db.Where("email = ?", req.Email).First(&client).Error; err != nil {
		RespondError(c, "email ou senha inválidos", http.StatusUnauthorized)
		return
	}

	if client.Password != encodePassword(client.Email, req.Password) {
		RespondError(c, "email ou senha inválidos", http.StatusUnauthorized)
		return
	}

	if !client.Active {
		RespondError(c, "conta desativada", http.StatusForbidden)
		return
	}

	now := time.Now()
	accessTTL := time.Duration(getenvInt("JWT_ACCESS_TTL_MINUTES", 24*60)) * time.Minute
	signed, err := signAccessToken(getJWTSecret(), client.ID, client.Email, accessTTL)
	if err != nil {
		RespondError(c, "erro ao assinar token", http.StatusInternalServerError)
		return
	}

	refresh, err := issueRefreshToken(db, client.ID, now)
	if err != nil {
		RespondError(c, "erro ao gerar refresh token", http.StatusInternalServerError)
		return
	}

	c.SetCookie("token", signed, int(accessTTL.Seconds()), "/", "", false, true)

	client.Password = ""
	RespondSuccess(c, LoginResponse{Token: signed, RefreshToken: refresh, Client: client})
}
