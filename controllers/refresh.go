package controllers

import (
	"net/http"
	"time"

	dbpkg "valeria/db"
	"valeria/models"
	"valeria/tools"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

type RefreshResponse struct {
	AccessToken        string `json:"access_token"`
	AccessExpiresAt    int64  `json:"access_expires_at"`     // unix seconds
	AccessExpiresAtISO string `json:"access_expires_at_iso"` // RFC3339
	RefreshToken       string `json:"refresh_token"`
}

// Refresh troca um refresh token válido por um novo par (access+refresh).
// Regras de segurança:
// - Não armazenamos o token em texto no DB (apenas hash)
// - Rotação: ao usar, revogamos tokens anteriores e emitimos um novo
// - Sessão única: revoga TODOS os refresh tokens ativos do tenant
func Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RefreshToken == "" {
		RespondError(c, "refresh_token é obrigatório", http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	hash := tools.EncryptTextSHA512(req.RefreshToken)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ?", hash).First(&stored).Error; err != nil {
		RespondError(c, "refresh token inválido", http.StatusUnauthorized)
		return
	}

	if stored.IsRevoked() || stored.IsExpired(now) {
		RespondError(c, "refresh token expirado", http.StatusUnauthorized)
		return
	}

	if err := revokeAllClientRefreshTokens(db, stored.ClientID, now); err != nil {
		RespondError(c, "erro ao revogar sessões anteriores", http.StatusInternalServerError)
		return
	}

	var client models.Client
	if err := db.First(&client, stored.ClientID).Error; err != nil {
		RespondError(c, "refresh token inválido", http.StatusUnauthorized)
		return
	}

	accessTTL := time.Duration(getenvInt("JWT_ACCESS_TTL_MINUTES", 24*60)) * time.Minute
	accessExp := now.Add(accessTTL)

	accessToken, err := signAccessToken(getJWTSecret(), client.ID, client.Email, accessTTL)
	if err != nil {
		RespondError(c, "erro ao assinar token", http.StatusInternalServerError)
		return
	}

	newRefresh, err := issueRefreshToken(db, stored.ClientID, now)
	if err != nil {
		RespondError(c, "erro ao gerar refresh token", http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, RefreshResponse{
		AccessToken:        accessToken,
		AccessExpiresAt:    accessExp.Unix(),
		AccessExpiresAtISO: accessExp.UTC().Format(time.RFC3339),
		RefreshToken:       newRefresh,
	})
}

// issueRefreshToken gera um refresh token novo e persiste só o hash.
func issueRefreshToken(db *gorm.DB, clientID int64, now time.Time) (string, error) {
	token := tools.RandomString(getenvInt("REFRESH_CODE_LEN", 32))
	expires := now.AddDate(0, 0, getenvInt("REFRESH_MAX_VALID_DAYS", 30))

	rt := models.RefreshToken{
		ClientID:  clientID,
		TokenHash: tools.EncryptTextSHA512(token),
		ExpiresAt: &expires,
	}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

func revokeAllClientRefreshTokens(db *gorm.DB, clientID int64, now time.Time) error {
	return db.Model(&models.RefreshToken{}).
		Where("client_id = ? AND revoked_at IS NULL", clientID).
		Update("revoked_at", &now).Error
}
