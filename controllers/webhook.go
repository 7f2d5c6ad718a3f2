package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	dbpkg "valeria/db"
	"valeria/memory"
	"valeria/models"
	"valeria/tools"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog/log"
)

type WebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Metadata struct {
					DisplayPhoneNumber string `json:"display_phone_number"`
					PhoneNumberID      string `json:"phone_number_id"`
				} `json:"metadata"`
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
				Statuses []struct {
					ID          string `json:"id"`
					Status      string `json:"status"`
					RecipientID string `json:"recipient_id"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type IncomingTextMessage struct {
	From        string
	ID          string
	Text        string
	ProfileName string
}

// OutboundStatus é um evento de entrega de uma mensagem que saiu deste
// número. "sent" sobre um wamid que não é nosso significa que alguém
// respondeu direto pelo console do Meta.
type OutboundStatus struct {
	MessageID   string
	Status      string
	RecipientID string
}

func extractTextMessages(payload WebhookPayload) []IncomingTextMessage {
	var out []IncomingTextMessage

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if strings.TrimSpace(change.Field) != "messages" {
				continue
			}
			names := map[string]string{}
			for _, contact := range change.Value.Contacts {
				names[strings.TrimSpace(contact.WaID)] = strings.TrimSpace(contact.Profile.Name)
			}
			for _, m := range change.Value.Messages {
				if strings.ToLower(strings.TrimSpace(m.Type)) != "text" {
					continue
				}
				body := strings.TrimSpace(m.Text.Body)
				if body == "" {
					continue
				}
				from := strings.TrimSpace(m.From)
				out = append(out, IncomingTextMessage{
					From:        from,
					ID:          strings.TrimSpace(m.ID),
					Text:        body,
					ProfileName: names[from],
				})
			}
		}
	}

	return out
}

func extractOutboundStatuses(payload WebhookPayload) []OutboundStatus {
	var out []OutboundStatus

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if strings.TrimSpace(change.Field) != "messages" {
				continue
			}
			for _, s := range change.Value.Statuses {
				out = append(out, OutboundStatus{
					MessageID:   strings.TrimSpace(s.ID),
					Status:      strings.ToLower(strings.TrimSpace(s.Status)),
					RecipientID: strings.TrimSpace(s.RecipientID),
				})
			}
		}
	}

	return out
}

// resolveWebhookClient acha o tenant dono do número que recebeu o evento.
// O metadata.phone_number_id do payload é a chave: é o mesmo valor gravado
// em whatsapp_instance_id no onboarding.
func resolveWebhookClient(db *gorm.DB, payload WebhookPayload) (*models.Client, bool) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			phoneNumberID := strings.TrimSpace(change.Value.Metadata.PhoneNumberID)
			if phoneNumberID == "" {
				continue
			}
			var client models.Client
			if err := db.Where("whatsapp_instance_id = ?", phoneNumberID).First(&client).Error; err != nil {
				return nil, false
			}
			return &client, true
		}
	}
	return nil, false
}

// verifyMetaSignature valida o corpo da request contra o X-Hub-Signature-256.
// O segredo é o App Secret do tenant; env var serve de fallback global.
func verifyMetaSignature(c *gin.Context, rawBody []byte, client *models.Client) (bool, string) {
	secret := ""
	if client != nil {
		secret = strings.TrimSpace(client.AppSecret)
	}
	if secret == "" {
		secret = strings.TrimSpace(os.Getenv("WEBHOOK_APP_SECRET"))
	}
	if secret == "" {
		secret = strings.TrimSpace(os.Getenv("META_APP_SECRET"))
	}
	if secret == "" {
		return false, "missing app secret (tenant and env)"
	}

	sig := strings.TrimSpace(c.GetHeader("X-Hub-Signature-256"))
	if sig == "" {
		return false, "missing X-Hub-Signature-256"
	}
	if !strings.HasPrefix(sig, "sha256=") {
		return false, "invalid X-Hub-Signature-256 format"
	}

	providedHex := strings.TrimPrefix(sig, "sha256=")
	provided, err := hex.DecodeString(providedHex)
	if err != nil {
		return false, "invalid signature hex"
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(rawBody)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return false, "signature mismatch"
	}

	return true, ""
}

// GET /webhook
func WebhookVerify(c *gin.Context) {
	verifyToken := os.Getenv("WEBHOOK_VERIFY_TOKEN")
	if verifyToken == "" {
		RespondError(c, "WEBHOOK_VERIFY_TOKEN not set", http.StatusInternalServerError)
		return
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == verifyToken && challenge != "" {
		c.String(http.StatusOK, "%s", challenge)
		return
	}

	RespondError(c, "forbidden", http.StatusForbidden)
}

// POST /webhook
//
// Sempre responde 200 com {"status":"received"}: falha de processamento não
// pode fazer o Meta reentregar o lote (reentrega duplicaria mensagens).
func WebhookUpdate(c *gin.Context) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}
	store := memory.StoreInstance(c)
	if store == nil {
		RespondError(c, "memory store não configurado no contexto", http.StatusInternalServerError)
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	client, ok := resolveWebhookClient(db, payload)
	if !ok {
		log.Warn().Msg("webhook sem tenant resolvível (phone_number_id desconhecido)")
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	// Assinatura inválida é logada mas não bloqueia: tenants antigos ainda
	// não têm app_secret preenchido.
	if ok, reason := verifyMetaSignature(c, raw, client); !ok {
		log.Warn().Int64("client_id", client.ID).Str("reason", reason).Msg("assinatura do webhook não validada")
	}

	for _, s := range extractOutboundStatuses(payload) {
		handleOutboundStatus(store, client.ID, s)
	}

	for _, m := range extractTextMessages(payload) {
		handleIncomingMessage(db, store, client, m)
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// handleOutboundStatus detecta takeover: um evento "sent" de um wamid que o
// sistema não registrou só pode ter saído do console do próprio Meta, então
// um humano assumiu por fora e o bot precisa calar.
func handleOutboundStatus(store memory.Store, clientID int64, s OutboundStatus) {
	if s.Status != "sent" || s.MessageID == "" || s.RecipientID == "" {
		return
	}

	conv := memory.New(store, clientID, s.RecipientID)

	ours, err := conv.IsMessageSentByBot(s.MessageID)
	if err != nil {
		log.Warn().Err(err).Str("message_id", s.MessageID).Msg("falha ao checar origem do wamid")
		return
	}
	if ours {
		return
	}

	if err := conv.SetHumanHandled(true, memory.TakeoverSentinel); err != nil {
		log.Warn().Err(err).Int64("client_id", clientID).Str("recipient", s.RecipientID).
			Msg("falha ao marcar takeover externo")
		return
	}
	log.Info().Int64("client_id", clientID).Str("recipient", s.RecipientID).
		Msg("takeover externo detectado; responder automático pausado")
}

func handleIncomingMessage(db *gorm.DB, store memory.Store, client *models.Client, m IncomingTextMessage) {
	phone, err := tools.NormalizePhone(m.From)
	if err != nil {
		log.Warn().Err(err).Int64("client_id", client.ID).Str("from", m.From).
			Msg("telefone inbound inválido; descartando mensagem")
		return
	}

	upsertCustomer(db, client.ID, phone, m.ProfileName)

	conv := memory.New(store, client.ID, phone)
	if err := conv.AddUserMessage(m.Text); err != nil {
		log.Warn().Err(err).Int64("client_id", client.ID).Str("phone", phone).
			Msg("falha ao gravar mensagem inbound no histórico")
	}

	if !client.Active {
		return
	}
	if !client.ParseBotConfig().Enabled() {
		return
	}
	if handled, err := conv.IsHumanHandled(); err != nil || handled {
		return
	}

	if err := upsertDebouncedEvent(db, client.ID, phone, m.ID, m.Text); err != nil {
		log.Error().Err(err).Int64("client_id", client.ID).Str("phone", phone).
			Msg("falha ao enfileirar evento inbound")
	}
}

func upsertCustomer(db *gorm.DB, clientID int64, phone string, profileName string) {
	var customer models.Customer
	err := db.Where("client_id = ? AND phone_number = ?", clientID, phone).First(&customer).Error
	if err == nil {
		if profileName != "" && customer.FullName == "" {
			_ = db.Model(&customer).Update("full_name", profileName).Error
		}
		return
	}

	customer = models.Customer{
		ClientID:    clientID,
		PhoneNumber: phone,
		FullName:    profileName,
	}
	if err := db.Create(&customer).Error; err != nil {
		log.Warn().Err(err).Int64("client_id", clientID).Str("phone", phone).Msg("falha no upsert de customer")
	}
}

// Debounce por (client_id + recipient): mensagens em rajada do mesmo contato
// invalidam o evento pendente anterior e viram um evento combinado.
func upsertDebouncedEvent(db *gorm.DB, clientID int64, recipient string, messageID string, text string) error {
	now := time.Now()
	scheduled := now.Add(3 * time.Second)

	tx := db.Begin()

	var last models.Event
	err := tx.
		Where("client_id = ? AND recipient = ? AND status = ?", clientID, recipient, models.EVENT_STATUS_PENDING).
		Where("scheduled_at IS NOT NULL AND scheduled_at > ?", now).
		Order("id desc").
		First(&last).Error

	combinedText := text
	if err == nil && last.ID > 0 {
		t := time.Now()
		_ = tx.Model(&models.Event{}).Where("id = ?", last.ID).Updates(map[string]any{
			"status":         models.EVENT_STATUS_INVALIDATED,
			"invalidated_at": &t,
		}).Error

		if strings.TrimSpace(last.Text) != "" {
			combinedText = strings.TrimSpace(last.Text) + "\n" + strings.TrimSpace(text)
		}
	}

	ev := models.Event{
		ClientID:    clientID,
		Recipient:   recipient,
		MessageID:   messageID,
		Text:        combinedText,
		Status:      models.EVENT_STATUS_PENDING,
		ScheduledAt: &scheduled,
	}

	if err := tx.Create(&ev).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return err
	}

	return nil
}
