package workers

import (
	"time"

	"valeria/memory"
	"valeria/models"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog/log"
)

// StartRepairProcessor starts a loop that replays failed local writes of
// human messages that were already delivered by the Cloud API.
func StartRepairProcessor(db *gorm.DB, store memory.Store) {
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			processPendingRepairs(db, store)
		}
	}()
}

func processPendingRepairs(db *gorm.DB, store memory.Store) {
	var repairs []models.MessageRepair
	if err := db.
		Where("status = ?", models.REPAIR_STATUS_PENDING).
		Order("id asc").
		Limit(50).
		Find(&repairs).Error; err != nil {
		log.Error().Err(err).Msg("repair worker: query error")
		return
	}

	for _, repair := range repairs {
		res := db.Model(&models.MessageRepair{}).
			Where("id = ? AND status = ?", repair.ID, models.REPAIR_STATUS_PENDING).
			Update("status", models.REPAIR_STATUS_PROCESSING)
		if res.Error != nil || res.RowsAffected == 0 {
			continue
		}

		handleRepair(db, store, repair)
	}
}

func handleRepair(db *gorm.DB, store memory.Store, repair models.MessageRepair) {
	conv := memory.New(store, repair.ClientID, repair.PhoneNumber)

	err := replayHumanSend(conv, repair)
	if err == nil {
		t := time.Now()
		_ = db.Model(&models.MessageRepair{}).Where("id = ?", repair.ID).Updates(map[string]any{
			"status":      models.REPAIR_STATUS_DONE,
			"repaired_at": &t,
			"last_error":  "",
		}).Error
		log.Info().Int64("repair_id", repair.ID).Str("message_id", repair.MessageID).
			Msg("repair worker: registro local reconciliado")
		return
	}

	attempts := repair.Attempts + 1
	status := models.REPAIR_STATUS_PENDING
	if attempts >= models.REPAIR_MAX_ATTEMPTS {
		status = models.REPAIR_STATUS_FAILED
	}
	_ = db.Model(&models.MessageRepair{}).Where("id = ?", repair.ID).Updates(map[string]any{
		"status":     status,
		"attempts":   attempts,
		"last_error": err.Error(),
	}).Error

	if status == models.REPAIR_STATUS_FAILED {
		log.Error().Err(err).Int64("repair_id", repair.ID).
			Msg("repair worker: desistindo após tentativas demais")
	}
}

func replayHumanSend(conv *memory.Conversation, repair models.MessageRepair) error {
	if err := conv.SetHumanHandled(true, repair.AdminName); err != nil {
		return err
	}
	if err := conv.AddHumanMessage(repair.Content, repair.AdminName); err != nil {
		return err
	}
	return conv.SaveSentMessageID(repair.MessageID)
}
