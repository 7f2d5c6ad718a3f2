package workers

import (
	"strings"
	"testing"
	"time"

	"valeria/memory"
	"valeria/models"
)

func TestHandleEventInvalidatesWhenSilenced(t *testing.T) {
	db := testDB(t)
	store := memory.NewCacheStore()

	client := models.Client{
		ID:                 7,
		BusinessName:       "Negócio",
		Email:              "t@example.com",
		Password:           "hash",
		Active:             true,
		AccessToken:        "token",
		WhatsappInstanceID: "550001",
	}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}

	if err := memory.New(store, client.ID, "18095551234").SetHumanHandled(true, "Rosa"); err != nil {
		t.Fatalf("SetHumanHandled() error: %v", err)
	}

	past := time.Now().Add(-time.Second)
	ev := models.Event{
		ClientID:    client.ID,
		Recipient:   "18095551234",
		Text:        "oi",
		Status:      models.EVENT_STATUS_PROCESSING,
		ScheduledAt: &past,
	}
	if err := db.Create(&ev).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}

	handleEvent(db, store, ev.ID)

	var after models.Event
	if err := db.First(&after, ev.ID).Error; err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if after.Status != models.EVENT_STATUS_INVALIDATED {
		t.Errorf("status = %q for silenced conversation, want invalidated", after.Status)
	}
}

func TestHandleEventInvalidatesWhenBotDisabled(t *testing.T) {
	db := testDB(t)
	store := memory.NewCacheStore()

	client := models.Client{
		ID:           7,
		BusinessName: "Negócio",
		Email:        "t@example.com",
		Password:     "hash",
		Active:       true,
		Config:       `{"bot_enabled": false}`,
	}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}

	ev := models.Event{
		ClientID:  client.ID,
		Recipient: "18095551234",
		Text:      "oi",
		Status:    models.EVENT_STATUS_PROCESSING,
	}
	if err := db.Create(&ev).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}

	handleEvent(db, store, ev.ID)

	var after models.Event
	if err := db.First(&after, ev.ID).Error; err != nil {
		t.Fatalf("reload event: %v", err)
	}
	if after.Status != models.EVENT_STATUS_INVALIDATED {
		t.Errorf("status = %q for disabled bot, want invalidated", after.Status)
	}
}

func TestBuildConversationPrompt(t *testing.T) {
	store := memory.NewCacheStore()
	conv := memory.New(store, 7, "18095551234")

	if err := conv.AddUserMessage("quero agendar um corte"); err != nil {
		t.Fatalf("AddUserMessage() error: %v", err)
	}
	if err := conv.AddBotMessage("claro, qual dia prefere?"); err != nil {
		t.Fatalf("AddBotMessage() error: %v", err)
	}
	if err := conv.AddHumanMessage("posso te encaixar na sexta", "Rosa"); err != nil {
		t.Fatalf("AddHumanMessage() error: %v", err)
	}

	prompt := buildConversationPrompt(conv, "sexta de manhã serve")

	for _, want := range []string{
		"Cliente: quero agendar um corte",
		"Assistente: claro, qual dia prefere?",
		"Atendente: posso te encaixar na sexta",
		"sexta de manhã serve",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildConversationPromptWithoutHistory(t *testing.T) {
	conv := memory.New(memory.NewCacheStore(), 7, "18095551234")

	prompt := buildConversationPrompt(conv, "oi")
	if prompt != "oi" {
		t.Errorf("prompt = %q, want bare question when history is empty", prompt)
	}
}
