package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Client representa um tenant (negócio) da plataforma.
// As credenciais do WhatsApp Cloud API ficam direto na linha do tenant:
// access_token/app_secret/api_version são opcionais até o onboarding terminar.
type Client struct {
	ID           int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	BusinessName string `gorm:"not null" json:"business_name" form:"business_name"`
	Email        string `gorm:"not null;unique" json:"email" form:"email"`
	Password     string `gorm:"not null" json:"password,omitempty" form:"password"`

	// phone-number-id do Cloud API; identifica o tenant nos webhooks
	WhatsappInstanceID string `gorm:"column:whatsapp_instance_id;unique_index" json:"whatsapp_instance_id" form:"whatsapp_instance_id"`

	Active                bool `gorm:"not null;default:true" json:"active"`
	Admin                 bool `gorm:"not null;default:false" json:"admin"`
	AdminOverrideDisabled bool `gorm:"column:admin_override_disabled;not null;default:false" json:"admin_override_disabled"`

	// Blob JSON livre de configuração do negócio (nome do assistente, prompt, etc.)
	Config string `gorm:"type:text" json:"config"`

	AccessToken string `gorm:"column:access_token;default:''" json:"-"`
	AppSecret   string `gorm:"column:app_secret;default:''" json:"-"`
	ApiVersion  string `gorm:"column:api_version;default:'v20.0'" json:"api_version"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

func (client Client) MissingFields() string {
	if client.BusinessName == "" {
		return "business_name"
	} else if client.Email == "" {
		return "email"
	} else if client.Password == "" {
		return "password"
	}
	return ""
}

// HasOutboundCredentials diz se o tenant pode enviar mensagens pelo Cloud API.
func (client Client) HasOutboundCredentials() bool {
	return strings.TrimSpace(client.AccessToken) != "" && strings.TrimSpace(client.WhatsappInstanceID) != ""
}

// BotConfig é o subconjunto do blob de configuração que o responder automático lê.
type BotConfig struct {
	AssistantName string `json:"assistant_name"`
	SystemPrompt  string `json:"system_prompt"`
	BotEnabled    *bool  `json:"bot_enabled"`
}

// ParseBotConfig interpreta o blob de config. Blob vazio ou inválido vira
// config default (bot habilitado, prompt vazio).
func (client Client) ParseBotConfig() BotConfig {
	var cfg BotConfig
	raw := strings.TrimSpace(client.Config)
	if raw == "" {
		return cfg
	}
	_ = json.Unmarshal([]byte(raw), &cfg)
	return cfg
}

func (cfg BotConfig) Enabled() bool {
	if cfg.BotEnabled == nil {
		return true
	}
	return *cfg.BotEnabled
}
