package models

import "time"

const REPAIR_STATUS_PENDING = "pending"
const REPAIR_STATUS_PROCESSING = "processing"
const REPAIR_STATUS_DONE = "done"
const REPAIR_STATUS_FAILED = "failed"

const REPAIR_MAX_ATTEMPTS = 5

// MessageRepair é o registro de reconciliação do fluxo "entrega antes, grava depois":
// quando uma mensagem humana já saiu pelo Cloud API mas a gravação do estado local
// falhou, enfileiramos aqui em vez de só logar, para não perder a trilha da conversa.
type MessageRepair struct {
	ID          int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ClientID    int64      `gorm:"not null;index" json:"client_id"`
	CustomerID  int64      `gorm:"not null" json:"customer_id"`
	PhoneNumber string     `gorm:"not null" json:"phone_number"`
	MessageID   string     `gorm:"default:''" json:"message_id"` // wamid devolvido pelo provider
	AdminName   string     `gorm:"default:''" json:"admin_name"`
	Content     string     `gorm:"type:text" json:"content"`
	Status      string     `gorm:"not null;default:'pending';index" json:"status"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error"`
	RepairedAt  *time.Time `json:"repaired_at"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}
