package controllers

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"

	dbpkg "valeria/db"
	"valeria/memory"
	"valeria/models"
	"valeria/tools"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const defaultEscalationReason = "Atendimento humano solicitado"

// messageSender é o contrato do gateway de saída (WhatsApp Cloud API).
type messageSender interface {
	SendText(ctx context.Context, to string, text string) (string, error)
}

// gatewayFor monta o gateway do tenant a partir das credenciais dele.
// Var para permitir fake em teste.
var gatewayFor = func(client models.Client) messageSender {
	return tools.WhatsAppClient{
		AccessToken:   client.AccessToken,
		ApiVersion:    client.ApiVersion,
		PhoneNumberID: client.WhatsappInstanceID,
	}
}

// requireTenant valida o client_id da request contra a sessão autenticada.
// Mismatch é falha dura de autorização (403), nunca scope-down silencioso.
func requireTenant(c *gin.Context, clientID int64) (models.Client, bool) {
	logged, ok := GetClientLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return models.Client{}, false
	}
	if clientID <= 0 {
		RespondError(c, "client_id é obrigatório", http.StatusBadRequest)
		return models.Client{}, false
	}
	if logged.ID != clientID {
		RespondError(c, "forbidden", http.StatusForbidden)
		return models.Client{}, false
	}
	return logged, true
}

// findOwnedCustomer resolve o :customerId escopado ao tenant. A resposta é a
// mesma (404) para customer inexistente e customer de outro tenant.
func findOwnedCustomer(c *gin.Context, clientID int64) (*models.Customer, bool) {
	id, ok := ParamID(c, "customerId")
	if !ok {
		return nil, false
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return nil, false
	}

	var customer models.Customer
	if err := db.Where("id = ? AND client_id = ?", id, clientID).First(&customer).Error; err != nil {
		RespondError(c, "customer não encontrado", http.StatusNotFound)
		return nil, false
	}
	return &customer, true
}

func conversationFor(c *gin.Context, clientID int64, phone string) (*memory.Conversation, bool) {
	store := memory.StoreInstance(c)
	if store == nil {
		RespondError(c, "memory store não configurado no contexto", http.StatusInternalServerError)
		return nil, false
	}
	return memory.New(store, clientID, phone), true
}

type takeRequest struct {
	ClientID  int64  `json:"client_id"`
	AdminName string `json:"admin_name"`
}

// POST /api/conversations/:customerId/take
// Marca a conversa como assumida por um humano. Sem guarda de concorrência:
// dois "take" simultâneos só regravam a mesma flag (last-write-wins).
func TakeConversation(c *gin.Context) {
	var req takeRequest
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	client, ok := requireTenant(c, req.ClientID)
	if !ok {
		return
	}
	customer, ok := findOwnedCustomer(c, client.ID)
	if !ok {
		return
	}
	conv, ok := conversationFor(c, client.ID, customer.PhoneNumber)
	if !ok {
		return
	}

	name := strings.TrimSpace(req.AdminName)
	if name == "" {
		name = memory.DefaultAdminName
	}

	if err := conv.SetHumanHandled(true, name); err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{"success": true, "status": memory.StatusHumanHandled})
}

type sendMessageRequest struct {
	ClientID  int64  `json:"client_id"`
	Message   string `json:"message"`
	AdminName string `json:"admin_name"`
}

// POST /api/conversations/:customerId/send-message
//
// Ordem deliberada: entrega primeiro, grava depois. Se a entrega falhar o
// estado local NÃO é tocado; se a gravação local falhar depois da entrega,
// a resposta continua sendo sucesso (a mensagem chegou no cliente) e o
// registro perdido vai pra fila de reparo.
func SendHumanMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	client, ok := requireTenant(c, req.ClientID)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		RespondError(c, "message é obrigatório", http.StatusBadRequest)
		return
	}
	customer, ok := findOwnedCustomer(c, client.ID)
	if !ok {
		return
	}

	if !client.HasOutboundCredentials() {
		RespondError(c, "credenciais do WhatsApp não configuradas", http.StatusBadRequest)
		return
	}

	conv, ok := conversationFor(c, client.ID, customer.PhoneNumber)
	if !ok {
		return
	}

	name := strings.TrimSpace(req.AdminName)
	if name == "" {
		name = memory.DefaultAdminName
	}

	messageID, err := gatewayFor(client).SendText(c.Request.Context(), customer.PhoneNumber, req.Message)
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := recordHumanSend(conv, messageID, req.Message, name); err != nil {
		log.Warn().Err(err).
			Int64("client_id", client.ID).
			Int64("customer_id", customer.ID).
			Str("message_id", messageID).
			Msg("mensagem entregue mas gravação local falhou; enfileirando reparo")
		enqueueRepair(c, client.ID, *customer, messageID, req.Message, name)
	}

	RespondSuccess(c, gin.H{
		"success":      true,
		"status":       memory.StatusHumanHandled,
		"message_id":   messageID,
		"phone_number": customer.PhoneNumber,
	})
}

// recordHumanSend grava o estado local de uma mensagem humana já entregue.
func recordHumanSend(conv *memory.Conversation, messageID string, content string, adminName string) error {
	if err := conv.SetHumanHandled(true, adminName); err != nil {
		return err
	}
	if err := conv.AddHumanMessage(content, adminName); err != nil {
		return err
	}
	return conv.SaveSentMessageID(messageID)
}

func enqueueRepair(c *gin.Context, clientID int64, customer models.Customer, messageID string, content string, adminName string) {
	db := dbpkg.DBInstance(c)
	if db == nil {
		return
	}
	repair := models.MessageRepair{
		ClientID:    clientID,
		CustomerID:  customer.ID,
		PhoneNumber: customer.PhoneNumber,
		MessageID:   messageID,
		AdminName:   adminName,
		Content:     content,
		Status:      models.REPAIR_STATUS_PENDING,
	}
	if err := db.Create(&repair).Error; err != nil {
		// pior caso: fica só o log mesmo
		log.Error().Err(err).Str("message_id", messageID).Msg("falha ao enfileirar reparo")
	}
}

type escalateRequest struct {
	ClientID int64  `json:"client_id"`
	Motivo   string `json:"motivo"`
}

// POST /api/conversations/:customerId/escalate
func EscalateConversation(c *gin.Context) {
	var req escalateRequest
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	client, ok := requireTenant(c, req.ClientID)
	if !ok {
		return
	}
	customer, ok := findOwnedCustomer(c, client.ID)
	if !ok {
		return
	}
	conv, ok := conversationFor(c, client.ID, customer.PhoneNumber)
	if !ok {
		return
	}

	reason := strings.TrimSpace(req.Motivo)
	if reason == "" {
		reason = defaultEscalationReason
	}

	if err := conv.SetEscalated(true, reason); err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{"success": true, "status": memory.StatusEscalated})
}

type resolveRequest struct {
	ClientID int64 `json:"client_id"`
	ResumeAI *bool `json:"resume_ai"`
}

// POST /api/conversations/:customerId/resolve
// resume_ai=true (default) limpa as flags e o bot volta a responder.
// resume_ai=false não muda nada no estado: "resolved" é só o que a resposta
// reporta, nunca é persistido.
func ResolveConversation(c *gin.Context) {
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	client, ok := requireTenant(c, req.ClientID)
	if !ok {
		return
	}
	customer, ok := findOwnedCustomer(c, client.ID)
	if !ok {
		return
	}

	resume := true
	if req.ResumeAI != nil {
		resume = *req.ResumeAI
	}

	if !resume {
		RespondSuccess(c, gin.H{"success": true, "status": memory.StatusResolved, "ai_resumed": false})
		return
	}

	conv, ok := conversationFor(c, client.ID, customer.PhoneNumber)
	if !ok {
		return
	}

	if err := conv.SetHumanHandled(false, ""); err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := conv.SetEscalated(false, ""); err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{"success": true, "status": memory.StatusActive, "ai_resumed": true})
}

// GET /api/conversations/:customerId/history?client_id=
func GetConversationHistory(c *gin.Context) {
	clientID, _ := strconv.ParseInt(strings.TrimSpace(c.Query("client_id")), 10, 64)
	client, ok := requireTenant(c, clientID)
	if !ok {
		return
	}
	customer, ok := findOwnedCustomer(c, client.ID)
	if !ok {
		return
	}
	conv, ok := conversationFor(c, client.ID, customer.PhoneNumber)
	if !ok {
		return
	}

	info, err := conv.GetStatus()
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	history, err := conv.GetHistory()
	if err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []memory.Message{}
	}

	RespondSuccess(c, gin.H{
		"customer":          customer,
		"status":            info.Status,
		"admin":             info.Admin,
		"escalation_reason": info.EscalationReason,
		"messages":          history,
	})
}

type conversationEntry struct {
	CustomerID       int64         `json:"customer_id"`
	PhoneNumber      string        `json:"phone_number"`
	FullName         string        `json:"full_name"`
	Status           memory.Status `json:"status"`
	Admin            *string       `json:"admin"`
	EscalationReason *string       `json:"escalation_reason"`
	LastMessage      string        `json:"last_message"`
	LastMessageAt    string        `json:"last_message_at"`
	MessageCount     int           `json:"message_count"`
}

const lastMessagePreviewLen = 100

// GET /api/conversations?client_id=&status_filter=
//
// Conversas sem histórico nunca aparecem. O status de exibição segue a
// prioridade escalated > human_handled > active. Os contadores agregados são
// da lista inteira; o status_filter só derruba entradas depois da derivação.
func ListConversations(c *gin.Context) {
	clientID, _ := strconv.ParseInt(strings.TrimSpace(c.Query("client_id")), 10, 64)
	client, ok := requireTenant(c, clientID)
	if !ok {
		return
	}

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

	var customers []models.Customer
	if err := db.Where("client_id = ?", client.ID).Find(&customers).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	filter := strings.TrimSpace(c.Query("status_filter"))
	counts := map[memory.Status]int{}
	total := 0
	entries := []conversationEntry{}

	for _, customer := range customers {
		conv := memory.New(store, client.ID, customer.PhoneNumber)

		history, err := conv.GetHistory()
		if err != nil {
			log.Warn().Err(err).Int64("customer_id", customer.ID).Msg("falha ao ler histórico; pulando conversa")
			continue
		}
		if len(history) == 0 {
			continue
		}

		info, err := conv.GetStatus()
		if err != nil {
			log.Warn().Err(err).Int64("customer_id", customer.ID).Msg("falha ao ler status; pulando conversa")
			continue
		}

		derived := memory.DeriveStatus(history, info)
		counts[derived]++
		total++

		if filter != "" && string(derived) != filter {
			continue
		}

		last := history[len(history)-1]
		preview := last.Content
		if runes := []rune(preview); len(runes) > lastMessagePreviewLen {
			preview = string(runes[:lastMessagePreviewLen])
		}

		entries = append(entries, conversationEntry{
			CustomerID:       customer.ID,
			PhoneNumber:      customer.PhoneNumber,
			FullName:         customer.FullName,
			Status:           derived,
			Admin:            info.Admin,
			EscalationReason: info.EscalationReason,
			LastMessage:      preview,
			LastMessageAt:    last.Timestamp,
			MessageCount:     len(history),
		})
	}

	// mais recente primeiro; timestamp vazio ordena por último
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastMessageAt > entries[j].LastMessageAt
	})

	RespondSuccess(c, gin.H{
		"conversations": entries,
		"total":         total,
		"active":        counts[memory.StatusActive],
		"human_handled": counts[memory.StatusHumanHandled],
		"escalated":     counts[memory.StatusEscalated],
		"resolved":      counts[memory.StatusResolved],
	})
}
