package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	dbpkg "valeria/db"
	"valeria/models"
	"valeria/tools"

	"github.com/gin-gonic/gin"
)

// ------------------------------
// Admin panel - Clients CRUD
// ------------------------------

// GET /api/clients
func GetClients(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var clients []models.Client
	if err := db.Order("id asc").Find(&clients).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	for i := range clients {
		clients[i].Password = ""
	}

	RespondSuccess(c, gin.H{"clients": clients})
}

// GET /api/clients/:id
func GetClientByID(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var client models.Client
	if err := db.First(&client, id).Error; err != nil {
		RespondError(c, "client não encontrado", http.StatusNotFound)
		return
	}
	client.Password = ""

	RespondSuccess(c, gin.H{"client": client})
}

// POST /api/clients
// Tenants são provisionados pelo operador; não existe auto-cadastro.
func CreateClient(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	client := models.Client{}
	if err := c.Bind(&client); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	missing := client.MissingFields()
	if missing != "" {
		RespondError(c, "Faltando campo "+missing, http.StatusBadRequest)
		return
	}
	if !tools.ValidateEmail(client.Email) {
		RespondError(c, "E-mail inválido!", http.StatusBadRequest)
		return
	}
	if check := tools.CheckPassword(client.Password); check != "" {
		RespondError(c, "Faltando campo "+check, http.StatusBadRequest)
		return
	}

	var existing models.Client
	if err := db.Where("email = ?", client.Email).First(&existing).Error; err == nil {
		RespondError(c, "client já existe", http.StatusBadRequest)
		return
	}

	client.Password = encodePassword(client.Email, client.Password)
	client.Admin = false
	client.Active = true
	if client.ApiVersion == "" {
		client.ApiVersion = "v20.0"
	}

	if err := db.Create(&client).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	client.Password = ""
	RespondSuccess(c, gin.H{"client": client})
}

type updateClientReq struct {
	BusinessName          *string `json:"business_name"`
	WhatsappInstanceID    *string `json:"whatsapp_instance_id"`
	Active                *bool   `json:"active"`
	AdminOverrideDisabled *bool   `json:"admin_override_disabled"`
	AccessToken           *string `json:"access_token"`
	AppSecret             *string `json:"app_secret"`
	ApiVersion            *string `json:"api_version"`
}

// PUT /api/clients/:id
// Campos ausentes no body ficam como estão (update parcial).
func UpdateClient(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var client models.Client
	if err := db.First(&client, id).Error; err != nil {
		RespondError(c, "client não encontrado", http.StatusNotFound)
		return
	}

	var req updateClientReq
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	updates := map[string]any{}
	if req.BusinessName != nil {
		updates["business_name"] = strings.TrimSpace(*req.BusinessName)
	}
	if req.WhatsappInstanceID != nil {
		updates["whatsapp_instance_id"] = strings.TrimSpace(*req.WhatsappInstanceID)
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.AdminOverrideDisabled != nil {
		updates["admin_override_disabled"] = *req.AdminOverrideDisabled
	}
	if req.AccessToken != nil {
		updates["access_token"] = strings.TrimSpace(*req.AccessToken)
	}
	if req.AppSecret != nil {
		updates["app_secret"] = strings.TrimSpace(*req.AppSecret)
	}
	if req.ApiVersion != nil {
		updates["api_version"] = strings.TrimSpace(*req.ApiVersion)
	}

	if len(updates) > 0 {
		if err := db.Model(&models.Client{}).Where("id = ?", client.ID).Updates(updates).Error; err != nil {
			RespondError(c, err.Error(), http.StatusBadRequest)
			return
		}
	}

	RespondSuccess(c, true)
}

// DELETE /api/clients/:id
func DeleteClient(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var client models.Client
	if err := db.First(&client, id).Error; err != nil {
		RespondError(c, "client não encontrado", http.StatusNotFound)
		return
	}

	if err := db.Delete(&client).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, true)
}

// POST /api/clients/:id/impersonate
// Emite um token de sessão do tenant para o operador, a não ser que o tenant
// tenha desabilitado o override.
func ImpersonateClient(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var client models.Client
	if err := db.First(&client, id).Error; err != nil {
		RespondError(c, "client não encontrado", http.StatusNotFound)
		return
	}

	if client.AdminOverrideDisabled {
		RespondError(c, "tenant desabilitou acesso do operador", http.StatusForbidden)
		return
	}

	accessTTL := time.Duration(getenvInt("JWT_IMPERSONATE_TTL_MINUTES", 60)) * time.Minute
	signed, err := signAccessToken(getJWTSecret(), client.ID, client.Email, accessTTL)
	if err != nil {
		RespondError(c, "erro ao assinar token", http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{"token": signed, "client_id": client.ID})
}

// ------------------------------
// Tenant self-service
// ------------------------------

type updateConfigReq struct {
	Config json.RawMessage `json:"config"`
}

// PUT /api/client/config
// Substitui o blob JSON de configuração do próprio tenant.
func UpdateClientConfig(c *gin.Context) {
	client, ok := GetClientLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateConfigReq
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Config) == 0 || !json.Valid(req.Config) {
		RespondError(c, "config precisa ser um JSON válido", http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	if err := db.Model(&models.Client{}).
		Where("id = ?", client.ID).
		Update("config", string(req.Config)).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, true)
}

type upsertCredentialsReq struct {
	WhatsappInstanceID string `json:"whatsapp_instance_id"`
	AccessToken        string `json:"access_token"`
	AppSecret          string `json:"app_secret"`
	ApiVersion         string `json:"api_version"`
}

// PUT /api/client/whatsapp-credentials
// Upsert das credenciais Cloud API do próprio tenant.
func UpsertWhatsAppCredentials(c *gin.Context) {
	client, ok := GetClientLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req upsertCredentialsReq
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	req.WhatsappInstanceID = strings.TrimSpace(req.WhatsappInstanceID)
	req.AccessToken = strings.TrimSpace(req.AccessToken)
	req.ApiVersion = strings.TrimSpace(req.ApiVersion)
	if req.ApiVersion == "" {
		req.ApiVersion = "v20.0"
	}

	if req.WhatsappInstanceID == "" {
		RespondError(c, "whatsapp_instance_id é obrigatório", http.StatusBadRequest)
		return
	}
	if req.AccessToken == "" {
		RespondError(c, "access_token é obrigatório", http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	if err := db.Model(&models.Client{}).
		Where("id = ?", client.ID).
		Updates(map[string]any{
			"whatsapp_instance_id": req.WhatsappInstanceID,
			"access_token":         req.AccessToken,
			"app_secret":           strings.TrimSpace(req.AppSecret),
			"api_version":          req.ApiVersion,
		}).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, true)
}
