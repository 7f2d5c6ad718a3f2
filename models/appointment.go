package models

import "time"

const APPOINTMENT_STATUS_SCHEDULED = "scheduled"
const APPOINTMENT_STATUS_DONE = "done"
const APPOINTMENT_STATUS_CANCELLED = "cancelled"

// Appointment representa um agendamento feito pelo assistente (ou pelo painel)
// para um cliente final do tenant.
type Appointment struct {
	ID          int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	ClientID    int64      `gorm:"not null;index" json:"client_id"`
	CustomerID  int64      `gorm:"not null;index" json:"customer_id" form:"customer_id"`
	Service     string     `gorm:"default:''" json:"service" form:"service"`
	Notes       string     `gorm:"type:text" json:"notes" form:"notes"`
	Status      string     `gorm:"not null;default:'scheduled';index" json:"status" form:"status"`
	ScheduledAt *time.Time `gorm:"index" json:"scheduled_at" form:"scheduled_at"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}
