package memberships

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db       *gorm.DB
	validity time.Duration
	logger   *slog.Logger
}

func NewService(db *gorm.DB, validity time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, validity: validity, logger: logger}
}

// Extend activates the membership for the validity window counted from
// now, not from the previous expiry, so a lapsed membership does not
// compound unpaid time. Upsert keyed on user_id makes it idempotent:
// re-running after a partial failure lands on the same state.
func (s *Service) Extend(ctx context.Context, userID string) error {
	now := time.Now()
	m := Membership{
		UserID:    userID,
		Status:    StatusActive,
		ExpiresAt: now.Add(s.validity),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"status":     StatusActive,
				"expires_at": m.ExpiresAt,
				"updated_at": now,
			}),
		}).
		Create(&m).Error
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "membership extended",
		"user_id", userID, "expires_at", m.ExpiresAt)
	return nil
}

func (s *Service) Get(ctx context.Context, userID string) (*Membership, error) {
	var m Membership
	err := s.db.WithContext(ctx).First(&m, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
