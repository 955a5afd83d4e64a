package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/acquahdegraft/ghanapwdeba-sub001/internal/storage"
)

// CallbackLog persists one audit row per provider callback hit and ships
// the raw payload to the archive. Independent of the replay decision: a
// suppressed duplicate still leaves a row.
type CallbackLog struct {
	db      *gorm.DB
	archive storage.Archiver
	logger  *slog.Logger
}

func NewCallbackLog(db *gorm.DB, archive storage.Archiver, logger *slog.Logger) *CallbackLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackLog{db: db, archive: archive, logger: logger}
}

func (l *CallbackLog) Record(ctx context.Context, provider, clientReference, transactionID string, payload []byte) (string, error) {
	now := time.Now()
	ev := CallbackEvent{
		ID:              uuid.NewString(),
		Provider:        provider,
		ClientReference: clientReference,
		TransactionID:   transactionID,
		PayloadJSON:     datatypes.JSON(payload),
		ReceivedAt:      now,
	}
	if err := l.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return "", err
	}

	if l.archive != nil {
		key := archiveKey(provider, clientReference, now)
		if err := l.archive.Put(ctx, key, payload); err != nil {
			l.logger.WarnContext(ctx, "callback archive failed",
				"client_reference", clientReference, "key", key, "err", err)
		}
	}
	return ev.ID, nil
}

func (l *CallbackLog) Resolve(ctx context.Context, eventID, outcome string) {
	err := l.db.WithContext(ctx).Model(&CallbackEvent{}).
		Where("id = ?", eventID).
		Update("outcome", outcome).Error
	if err != nil {
		l.logger.WarnContext(ctx, "callback event resolve failed", "event_id", eventID, "err", err)
	}
}

func archiveKey(provider, clientReference string, t time.Time) string {
	return fmt.Sprintf("%s/%s/%s-%d.json",
		provider, t.UTC().Format("2006/01/02"), clientReference, t.UnixMilli())
}
