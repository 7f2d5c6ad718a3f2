package workers

import (
	"testing"

	dbpkg "valeria/db"
	"valeria/memory"
	"valeria/models"

	"github.com/jinzhu/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dbpkg.AutoMigrate(db)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestProcessPendingRepairsReplaysLocalState(t *testing.T) {
	db := testDB(t)
	store := memory.NewCacheStore()

	repair := models.MessageRepair{
		ClientID:    7,
		CustomerID:  42,
		PhoneNumber: "18095551234",
		MessageID:   "wamid.ABC",
		AdminName:   "Rosa",
		Content:     "Olá, aqui é a Rosa",
		Status:      models.REPAIR_STATUS_PENDING,
	}
	if err := db.Create(&repair).Error; err != nil {
		t.Fatalf("create repair: %v", err)
	}

	processPendingRepairs(db, store)

	var done models.MessageRepair
	if err := db.First(&done, repair.ID).Error; err != nil {
		t.Fatalf("reload repair: %v", err)
	}
	if done.Status != models.REPAIR_STATUS_DONE {
		t.Fatalf("status = %q, want done", done.Status)
	}
	if done.RepairedAt == nil {
		t.Error("RepairedAt = nil, want timestamp")
	}

	conv := memory.New(store, 7, "18095551234")
	info, err := conv.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if info.Status != memory.StatusHumanHandled {
		t.Errorf("status = %q after repair, want human_handled", info.Status)
	}
	if info.Admin == nil || *info.Admin != "Rosa" {
		t.Errorf("admin = %v, want Rosa", info.Admin)
	}

	history, err := conv.GetHistory()
	if err != nil {
		t.Fatalf("GetHistory() error: %v", err)
	}
	if len(history) != 1 || history[0].Content != "Olá, aqui é a Rosa" {
		t.Fatalf("history = %+v, want replayed human message", history)
	}

	ours, err := conv.IsMessageSentByBot("wamid.ABC")
	if err != nil {
		t.Fatalf("IsMessageSentByBot() error: %v", err)
	}
	if !ours {
		t.Error("wamid not registered after repair")
	}
}

func TestProcessPendingRepairsIgnoresDone(t *testing.T) {
	db := testDB(t)
	store := memory.NewCacheStore()

	repair := models.MessageRepair{
		ClientID:    7,
		PhoneNumber: "18095551234",
		MessageID:   "wamid.DONE",
		Content:     "antiga",
		Status:      models.REPAIR_STATUS_DONE,
	}
	if err := db.Create(&repair).Error; err != nil {
		t.Fatalf("create repair: %v", err)
	}

	processPendingRepairs(db, store)

	history, err := memory.New(store, 7, "18095551234").GetHistory()
	if err != nil {
		t.Fatalf("GetHistory() error: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %+v for already-done repair, want empty", history)
	}
}
