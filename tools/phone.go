package tools

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizePhone normaliza um telefone para o formato aceito pelo WhatsApp
// Cloud API (apenas dígitos, formato internacional, sem '+').
// Números de webhook já chegam assim; este helper cobre entradas do painel.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty phone")
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	phone := strings.TrimLeft(b.String(), "0")

	// validação bem leve: DDI + número
	if len(phone) < 8 {
		return "", fmt.Errorf("invalid phone length: %d", len(phone))
	}
	return phone, nil
}
