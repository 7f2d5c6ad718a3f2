package memory

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status é o estado de atendimento de uma conversa.
// "active" nunca é gravado: é o default quando a chave de status não existe
// (ou expirou) — esse default segura a máquina de estados inteira.
// "resolved" também nunca é gravado: é derivado quando não há histórico.
type Status string

const (
	StatusActive       Status = "active"
	StatusHumanHandled Status = "human_handled"
	StatusEscalated    Status = "escalated"
	StatusResolved     Status = "resolved"
)

const (
	// ConversationTTL é a validade das chaves de estado (status, admin,
	// motivo de escalação, ids enviados). Sem atividade por 1h a conversa
	// volta sozinha para "active".
	ConversationTTL = time.Hour

	// HistoryLimit é o tamanho máximo do histórico após um append humano.
	HistoryLimit = 20

	// DefaultAdminName é usado quando o operador não informa nome.
	DefaultAdminName = "Agente"

	// TakeoverSentinel marca conversas assumidas fora do painel
	// (respondidas direto pelo console do Meta).
	TakeoverSentinel = "WhatsApp Business Suite"
)

// Message é um registro do histórico da conversa. O shape JSON
// (role/content/timestamp/human/admin) é o formato armazenado e servido
// ao dashboard — não mudar sem migrar o front.
type Message struct {
	Role      string `json:"role"` // "user" | "assistant"
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"` // RFC3339
	Human     bool   `json:"human,omitempty"`
	Admin     string `json:"admin,omitempty"`
}

// Sender identifica quem escreveu a mensagem, resolvido uma única vez
// a partir do par (role, human).
type Sender string

const (
	SenderCustomer Sender = "customer"
	SenderBot      Sender = "bot"
	SenderAgent    Sender = "agent"
)

func (m Message) Sender() Sender {
	if m.Role == "user" {
		return SenderCustomer
	}
	if m.Human {
		return SenderAgent
	}
	return SenderBot
}

// StatusInfo é o resultado de GetStatus. Admin e EscalationReason são nil
// quando as chaves correspondentes não existem.
type StatusInfo struct {
	Status           Status  `json:"status"`
	Admin            *string `json:"admin"`
	EscalationReason *string `json:"escalation_reason"`
}

// Conversation é o único componente que lê/escreve o estado de conversa de
// um par (client_id, phone_number). A composição das chaves é privada daqui:
// trocar o storage não deve vazar para os callers.
type Conversation struct {
	store    Store
	clientID int64
	phone    string
	ttl      time.Duration
	now      func() time.Time
}

func New(store Store, clientID int64, phone string) *Conversation {
	return &Conversation{
		store:    store,
		clientID: clientID,
		phone:    phone,
		ttl:      ConversationTTL,
		now:      time.Now,
	}
}

func (cv *Conversation) baseKey() string {
	return fmt.Sprintf("chat:%d:%s", cv.clientID, cv.phone)
}

func (cv *Conversation) statusKey() string  { return cv.baseKey() + ":status" }
func (cv *Conversation) adminKey() string   { return cv.baseKey() + ":admin" }
func (cv *Conversation) reasonKey() string  { return cv.baseKey() + ":escalation_reason" }
func (cv *Conversation) sentKey() string    { return cv.baseKey() + ":sent_messages" }
func (cv *Conversation) historyKey() string { return cv.baseKey() }

// IsHumanHandled diz se um humano está (ou deveria estar) respondendo.
// Usado para calar o responder automático.
func (cv *Conversation) IsHumanHandled() (bool, error) {
	v, ok, err := cv.store.Get(cv.statusKey())
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	s := Status(v)
	return s == StatusHumanHandled || s == StatusEscalated, nil
}

// SetHumanHandled grava (ou limpa) o estado de atendimento humano.
// handled=false apaga as chaves na hora, sem esperar o TTL. Idempotente.
func (cv *Conversation) SetHumanHandled(handled bool, adminName string) error {
	if !handled {
		if err := cv.store.Delete(cv.statusKey()); err != nil {
			return err
		}
		return cv.store.Delete(cv.adminKey())
	}
	if err := cv.store.Set(cv.statusKey(), string(StatusHumanHandled), cv.ttl); err != nil {
		return err
	}
	if adminName != "" {
		return cv.store.Set(cv.adminKey(), adminName, cv.ttl)
	}
	return nil
}

// SetEscalated grava (ou limpa) o estado de escalação, simétrico ao SetHumanHandled.
func (cv *Conversation) SetEscalated(escalated bool, reason string) error {
	if !escalated {
		if err := cv.store.Delete(cv.statusKey()); err != nil {
			return err
		}
		return cv.store.Delete(cv.reasonKey())
	}
	if err := cv.store.Set(cv.statusKey(), string(StatusEscalated), cv.ttl); err != nil {
		return err
	}
	if reason != "" {
		return cv.store.Set(cv.reasonKey(), reason, cv.ttl)
	}
	return nil
}

// GetStatus devolve o estado atual. Chave ausente (nunca setada ou expirada)
// vira "active" com admin/motivo nulos.
func (cv *Conversation) GetStatus() (StatusInfo, error) {
	info := StatusInfo{Status: StatusActive}

	v, ok, err := cv.store.Get(cv.statusKey())
	if err != nil {
		return info, err
	}
	if ok && (Status(v) == StatusHumanHandled || Status(v) == StatusEscalated) {
		info.Status = Status(v)
	}

	if a, ok, err := cv.store.Get(cv.adminKey()); err != nil {
		return info, err
	} else if ok {
		info.Admin = &a
	}

	if r, ok, err := cv.store.Get(cv.reasonKey()); err != nil {
		return info, err
	} else if ok {
		info.EscalationReason = &r
	}

	return info, nil
}

// AddHumanMessage registra uma mensagem enviada por um operador humano.
// Único caminho de append que apara o histórico (últimas HistoryLimit) e
// renova o TTL — appends de bot/usuário não aparam.
func (cv *Conversation) AddHumanMessage(content string, adminName string) error {
	if adminName == "" {
		adminName = DefaultAdminName
	}
	return cv.append(Message{
		Role:      "assistant",
		Content:   content,
		Timestamp: cv.now().Format(time.RFC3339),
		Human:     true,
		Admin:     adminName,
	}, true)
}

// AddUserMessage registra uma mensagem inbound do cliente final.
func (cv *Conversation) AddUserMessage(content string) error {
	return cv.append(Message{
		Role:      "user",
		Content:   content,
		Timestamp: cv.now().Format(time.RFC3339),
	}, false)
}

// AddBotMessage registra uma resposta do assistente automático.
func (cv *Conversation) AddBotMessage(content string) error {
	return cv.append(Message{
		Role:      "assistant",
		Content:   content,
		Timestamp: cv.now().Format(time.RFC3339),
	}, false)
}

func (cv *Conversation) append(msg Message, trim bool) error {
	history, err := cv.GetHistory()
	if err != nil {
		return err
	}
	history = append(history, msg)
	if trim && len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	b, err := json.Marshal(history)
	if err != nil {
		return err
	}
	return cv.store.Set(cv.historyKey(), string(b), cv.ttl)
}

// GetHistory devolve o histórico completo (já aparado), do mais antigo
// para o mais novo. Sem efeito colateral.
func (cv *Conversation) GetHistory() ([]Message, error) {
	v, ok, err := cv.store.Get(cv.historyKey())
	if err != nil {
		return nil, err
	}
	if !ok || v == "" {
		return nil, nil
	}
	var history []Message
	if err := json.Unmarshal([]byte(v), &history); err != nil {
		return nil, err
	}
	return history, nil
}

// SaveSentMessageID registra um wamid que NÓS enviamos, para distinguir
// depois de envios feitos por humanos no console do próprio Meta.
func (cv *Conversation) SaveSentMessageID(messageID string) error {
	ids, err := cv.sentIDs()
	if err != nil {
		return err
	}
	found := false
	for _, id := range ids {
		if id == messageID {
			found = true
			break
		}
	}
	if !found {
		ids = append(ids, messageID)
	}
	// o Set abaixo também renova o TTL quando o id já existia
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return cv.store.Set(cv.sentKey(), string(b), cv.ttl)
}

// IsMessageSentByBot diz se o wamid está no conjunto de envios deste sistema.
func (cv *Conversation) IsMessageSentByBot(messageID string) (bool, error) {
	ids, err := cv.sentIDs()
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (cv *Conversation) sentIDs() ([]string, error) {
	v, ok, err := cv.store.Get(cv.sentKey())
	if err != nil {
		return nil, err
	}
	if !ok || v == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(v), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeriveStatus calcula o status de exibição de uma conversa para a listagem:
// sem histórico => resolved; com histórico, escalated > human_handled > active.
// Uma conversa com histórico nunca é "resolved".
func DeriveStatus(history []Message, info StatusInfo) Status {
	if len(history) == 0 {
		return StatusResolved
	}
	switch info.Status {
	case StatusEscalated:
		return StatusEscalated
	case StatusHumanHandled:
		return StatusHumanHandled
	default:
		return StatusActive
	}
}
