package memory

import (
	"fmt"
	"testing"
	"time"
)

func testConversation(t *testing.T) *Conversation {
	t.Helper()
	return New(NewCacheStore(), 7, "18095551234")
}

func TestStatusDefaultsToActive(t *testing.T) {
	cv := testConversation(t)

	info, err := cv.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if info.Status != StatusActive {
		t.Errorf("Status = %q, want %q", info.Status, StatusActive)
	}
	if info.Admin != nil {
		t.Errorf("Admin = %v, want nil", *info.Admin)
	}
	if info.EscalationReason != nil {
		t.Errorf("EscalationReason = %v, want nil", *info.EscalationReason)
	}

	handled, err := cv.IsHumanHandled()
	if err != nil {
		t.Fatalf("IsHumanHandled() error: %v", err)
	}
	if handled {
		t.Error("IsHumanHandled() = true for fresh conversation, want false")
	}
}

func TestSetHumanHandled(t *testing.T) {
	cv := testConversation(t)

	if err := cv.SetHumanHandled(true, "Rosa"); err != nil {
		t.Fatalf("SetHumanHandled() error: %v", err)
	}

	info, err := cv.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if info.Status != StatusHumanHandled {
		t.Errorf("Status = %q, want %q", info.Status, StatusHumanHandled)
	}
	if info.Admin == nil || *info.Admin != "Rosa" {
		t.Errorf("Admin = %v, want Rosa", info.Admin)
	}

	handled, err := cv.IsHumanHandled()
	if err != nil {
		t.Fatalf("IsHumanHandled() error: %v", err)
	}
	if !handled {
		t.Error("IsHumanHandled() = false after SetHumanHandled(true)")
	}
}

func TestEscalatedAlsoSilencesBot(t *testing.T) {
	cv := testConversation(t)

	if err := cv.SetEscalated(true, "cliente pediu atendente"); err != nil {
		t.Fatalf("SetEscalated() error: %v", err)
	}

	handled, err := cv.IsHumanHandled()
	if err != nil {
		t.Fatalf("IsHumanHandled() error: %v", err)
	}
	if !handled {
		t.Error("IsHumanHandled() = false for escalated conversation, want true")
	}

	info, err := cv.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if info.Status != StatusEscalated {
		t.Errorf("Status = %q, want %q", info.Status, StatusEscalated)
	}
	if info.EscalationReason == nil || *info.EscalationReason != "cliente pediu atendente" {
		t.Errorf("EscalationReason = %v, want cliente pediu atendente", info.EscalationReason)
	}
}

func TestClearingIsIdempotent(t *testing.T) {
	cv := testConversation(t)

	if err := cv.SetHumanHandled(true, "Rosa"); err != nil {
		t.Fatalf("SetHumanHandled(true) error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := cv.SetHumanHandled(false, ""); err != nil {
			t.Fatalf("SetHumanHandled(false) #%d error: %v", i+1, err)
		}
		if err := cv.SetEscalated(false, ""); err != nil {
			t.Fatalf("SetEscalated(false) #%d error: %v", i+1, err)
		}
	}

	info, err := cv.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if info.Status != StatusActive {
		t.Errorf("Status = %q after clearing, want %q", info.Status, StatusActive)
	}
	if info.Admin != nil {
		t.Errorf("Admin = %v after clearing, want nil", *info.Admin)
	}
}

func TestHistoryChronologicalOrder(t *testing.T) {
	cv := testConversation(t)

	if err := cv.AddUserMessage("oi"); err != nil {
		t.Fatalf("AddUserMessage() error: %v", err)
	}
	if err := cv.AddBotMessage("olá, como posso ajudar?"); err != nil {
		t.Fatalf("AddBotMessage() error: %v", err)
	}
	if err := cv.AddHumanMessage("aqui é a Rosa, vou te atender", "Rosa"); err != nil {
		t.Fatalf("AddHumanMessage() error: %v", err)
	}

	history, err := cv.GetHistory()
	if err != nil {
		t.Fatalf("GetHistory() error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}

	wantSenders := []Sender{SenderCustomer, SenderBot, SenderAgent}
	for i, want := range wantSenders {
		if got := history[i].Sender(); got != want {
			t.Errorf("history[%d].Sender() = %q, want %q", i, got, want)
		}
	}
	if history[2].Admin != "Rosa" {
		t.Errorf("history[2].Admin = %q, want Rosa", history[2].Admin)
	}
}

func TestHumanAppendTrimsHistory(t *testing.T) {
	cv := testConversation(t)

	for i := 0; i < HistoryLimit+10; i++ {
		if err := cv.AddUserMessage(fmt.Sprintf("mensagem %d", i)); err != nil {
			t.Fatalf("AddUserMessage(%d) error: %v", i, err)
		}
	}

	// appends de usuário não aparam
	history, err := cv.GetHistory()
	if err != nil {
		t.Fatalf("GetHistory() error: %v", err)
	}
	if len(history) != HistoryLimit+10 {
		t.Fatalf("len(history) = %d before human append, want %d", len(history), HistoryLimit+10)
	}

	if err := cv.AddHumanMessage("resposta final", "Rosa"); err != nil {
		t.Fatalf("AddHumanMessage() error: %v", err)
	}

	history, err = cv.GetHistory()
	if err != nil {
		t.Fatalf("GetHistory() error: %v", err)
	}
	if len(history) != HistoryLimit {
		t.Fatalf("len(history) = %d after human append, want %d", len(history), HistoryLimit)
	}

	// o corte mantém o fim do histórico: a última é a mensagem humana
	last := history[len(history)-1]
	if last.Content != "resposta final" || !last.Human {
		t.Errorf("last message = %+v, want human message 'resposta final'", last)
	}
	if history[0].Content == "mensagem 0" {
		t.Error("oldest messages should have been trimmed away")
	}
}

func TestHumanMessageDefaultAdmin(t *testing.T) {
	cv := testConversation(t)

	if err := cv.AddHumanMessage("olá", ""); err != nil {
		t.Fatalf("AddHumanMessage() error: %v", err)
	}

	history, err := cv.GetHistory()
	if err != nil {
		t.Fatalf("GetHistory() error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("len(history) = %d, want 1", len(history))
	}
	if history[0].Admin != DefaultAdminName {
		t.Errorf("Admin = %q, want %q", history[0].Admin, DefaultAdminName)
	}
}

func TestTTLResetsConversation(t *testing.T) {
	cv := testConversation(t)
	cv.ttl = 30 * time.Millisecond

	if err := cv.SetHumanHandled(true, "Rosa"); err != nil {
		t.Fatalf("SetHumanHandled() error: %v", err)
	}
	if err := cv.AddHumanMessage("olá", "Rosa"); err != nil {
		t.Fatalf("AddHumanMessage() error: %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	info, err := cv.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if info.Status != StatusActive {
		t.Errorf("Status = %q after TTL expiry, want %q", info.Status, StatusActive)
	}
	if info.Admin != nil {
		t.Errorf("Admin = %v after TTL expiry, want nil", *info.Admin)
	}

	history, err := cv.GetHistory()
	if err != nil {
		t.Fatalf("GetHistory() error: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("len(history) = %d after TTL expiry, want 0", len(history))
	}
}

func TestSentMessageTracking(t *testing.T) {
	cv := testConversation(t)

	ours, err := cv.IsMessageSentByBot("wamid.ABC")
	if err != nil {
		t.Fatalf("IsMessageSentByBot() error: %v", err)
	}
	if ours {
		t.Error("IsMessageSentByBot() = true before any send")
	}

	if err := cv.SaveSentMessageID("wamid.ABC"); err != nil {
		t.Fatalf("SaveSentMessageID() error: %v", err)
	}
	// salvar de novo não duplica
	if err := cv.SaveSentMessageID("wamid.ABC"); err != nil {
		t.Fatalf("SaveSentMessageID() (repeat) error: %v", err)
	}

	ours, err = cv.IsMessageSentByBot("wamid.ABC")
	if err != nil {
		t.Fatalf("IsMessageSentByBot() error: %v", err)
	}
	if !ours {
		t.Error("IsMessageSentByBot() = false for saved wamid, want true")
	}

	ids, err := cv.sentIDs()
	if err != nil {
		t.Fatalf("sentIDs() error: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("len(sentIDs) = %d, want 1 (no duplicates)", len(ids))
	}

	other, err := cv.IsMessageSentByBot("wamid.XYZ")
	if err != nil {
		t.Fatalf("IsMessageSentByBot() error: %v", err)
	}
	if other {
		t.Error("IsMessageSentByBot() = true for unknown wamid")
	}
}

func TestConversationIsolationByTenantAndPhone(t *testing.T) {
	store := NewCacheStore()
	a := New(store, 1, "18095551234")
	b := New(store, 2, "18095551234")
	c := New(store, 1, "18095559999")

	if err := a.SetHumanHandled(true, "Rosa"); err != nil {
		t.Fatalf("SetHumanHandled() error: %v", err)
	}

	for name, cv := range map[string]*Conversation{"other tenant": b, "other phone": c} {
		handled, err := cv.IsHumanHandled()
		if err != nil {
			t.Fatalf("IsHumanHandled() (%s) error: %v", name, err)
		}
		if handled {
			t.Errorf("IsHumanHandled() = true for %s, want false", name)
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	history := []Message{{Role: "user", Content: "oi"}}

	tests := []struct {
		name    string
		history []Message
		info    StatusInfo
		want    Status
	}{
		{"empty history is resolved", nil, StatusInfo{Status: StatusActive}, StatusResolved},
		{"empty history ignores stored status", nil, StatusInfo{Status: StatusEscalated}, StatusResolved},
		{"active", history, StatusInfo{Status: StatusActive}, StatusActive},
		{"human handled", history, StatusInfo{Status: StatusHumanHandled}, StatusHumanHandled},
		{"escalated wins", history, StatusInfo{Status: StatusEscalated}, StatusEscalated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.history, tt.info); got != tt.want {
				t.Errorf("DeriveStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}
