package models

import "time"

// Customer é um contato (usuário final) de um tenant, identificado dentro
// do tenant pelo telefone. O par (client_id, phone_number) é único: o webhook
// faz upsert por esse par.
type Customer struct {
	ID          int64  `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ClientID    int64  `gorm:"not null;index;unique_index:idx_customer_client_phone" json:"client_id"`
	PhoneNumber string `gorm:"not null;unique_index:idx_customer_client_phone" json:"phone_number" form:"phone_number"`
	FullName    string `gorm:"default:''" json:"full_name" form:"full_name"`

	// Bag JSON livre (email, endereço, etc.)
	Data string `gorm:"type:text" json:"data" form:"data"`

	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
