package workers

import (
	"context"
	"strings"
	"time"

	"valeria/memory"
	"valeria/models"
	"valeria/tools"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog/log"
)

// StartEventProcessor starts a loop that processes pending events whose ScheduledAt <= now.
func StartEventProcessor(db *gorm.DB, store memory.Store) {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			processDueEvents(db, store)
		}
	}()
}

func processDueEvents(db *gorm.DB, store memory.Store) {
	now := time.Now()

	var events []models.Event
	if err := db.
		Where("status = ?", models.EVENT_STATUS_PENDING).
		Where("scheduled_at IS NOT NULL AND scheduled_at <= ?", now).
		Order("scheduled_at asc, id asc").
		Limit(50).
		Find(&events).Error; err != nil {
		log.Error().Err(err).Msg("events worker: query error")
		return
	}

	for _, ev := range events {
		// lock otimista: só processa se conseguir mudar status
		res := db.Model(&models.Event{}).
			Where("id = ? AND status = ?", ev.ID, models.EVENT_STATUS_PENDING).
			Update("status", models.EVENT_STATUS_PROCESSING)
		if res.Error != nil || res.RowsAffected == 0 {
			continue
		}

		go handleEvent(db, store, ev.ID)
	}
}

func handleEvent(db *gorm.DB, store memory.Store, eventID int64) {
	var ev models.Event
	if err := db.First(&ev, eventID).Error; err != nil {
		return
	}
	if ev.Status != models.EVENT_STATUS_PROCESSING {
		return
	}

	var client models.Client
	if err := db.First(&client, ev.ClientID).Error; err != nil {
		invalidateEvent(db, ev.ID)
		return
	}

	cfg := client.ParseBotConfig()
	if !client.Active || !cfg.Enabled() {
		invalidateEvent(db, ev.ID)
		return
	}

	conv := memory.New(store, client.ID, ev.Recipient)

	// Re-checa na hora do processamento: um humano pode ter assumido ou uma
	// escalação pode ter acontecido durante a janela de debounce.
	if handled, err := conv.IsHumanHandled(); err != nil || handled {
		invalidateEvent(db, ev.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	question := strings.TrimSpace(ev.Text)
	enriched := buildConversationPrompt(conv, question)

	replyText, err := tools.GenerateAIReply(ctx, cfg.SystemPrompt, enriched)
	if err != nil {
		log.Error().Err(err).Int64("event_id", ev.ID).Msg("events worker: openai error")
		replyText = "Desculpe, tive um problema ao gerar a resposta."
	}

	waClient := tools.WhatsAppClient{
		AccessToken:   client.AccessToken,
		ApiVersion:    client.ApiVersion,
		PhoneNumberID: client.WhatsappInstanceID,
	}
	messageID, err := waClient.SendText(ctx, ev.Recipient, replyText)
	if err != nil {
		log.Error().Err(err).Int64("event_id", ev.ID).Msg("events worker: send whatsapp error")
		invalidateEvent(db, ev.ID)
		return
	}

	// Registra o wamid ANTES do histórico: o status "sent" do webhook pode
	// chegar antes deste goroutine terminar, e um wamid não registrado seria
	// lido como takeover externo.
	if err := conv.SaveSentMessageID(messageID); err != nil {
		log.Warn().Err(err).Str("message_id", messageID).Msg("events worker: falha ao registrar wamid")
	}
	if err := conv.AddBotMessage(replyText); err != nil {
		log.Warn().Err(err).Int64("event_id", ev.ID).Msg("events worker: falha ao gravar resposta no histórico")
	}

	t := time.Now()
	_ = db.Model(&models.Event{}).Where("id = ?", ev.ID).Updates(map[string]any{
		"status":       models.EVENT_STATUS_DONE,
		"processed_at": &t,
		"reply_text":   replyText,
	}).Error
}

func invalidateEvent(db *gorm.DB, eventID int64) {
	t := time.Now()
	_ = db.Model(&models.Event{}).Where("id = ?", eventID).Updates(map[string]any{
		"status":         models.EVENT_STATUS_INVALIDATED,
		"invalidated_at": &t,
	}).Error
}

// buildConversationPrompt monta o texto enviado ao modelo: as últimas trocas
// da conversa como contexto + a pergunta atual. Se a leitura do histórico
// falhar, segue só com a pergunta.
func buildConversationPrompt(conv *memory.Conversation, question string) string {
	history, err := conv.GetHistory()
	if err != nil || len(history) == 0 {
		return question
	}

	// só as últimas trocas, pra não explodir tokens
	const maxTurns = 10
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	var b strings.Builder
	b.WriteString("Histórico recente da conversa:\n")
	for _, m := range history {
		label := "Cliente"
		switch m.Sender() {
		case memory.SenderBot:
			label = "Assistente"
		case memory.SenderAgent:
			label = "Atendente"
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if len(content) > 600 {
			content = content[:600] + "..."
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n")
	}
	b.WriteString("\nMensagem atual do cliente:\n")
	b.WriteString(question)

	return b.String()
}
