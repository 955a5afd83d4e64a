package payments

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// SwapCondition is the expected snapshot a CompareAndSwap checks before
// writing. RequireToken additionally demands webhook_token still present,
// i.e. no confirming event accepted yet.
type SwapCondition struct {
	Status       string
	RequireToken bool
}

// Mutation is applied only when the condition holds. The token is always
// cleared and updated_at bumped. Notes carries the full new audit text;
// callers build it from the snapshot they fetched, which is safe because
// the condition admits exactly one writer per transition.
type Mutation struct {
	Status      string
	PaymentDate *time.Time
	Notes       string
}

// Store is the sole persistence contract for payment records.
// CompareAndSwap is the only mutation path after Create.
type Store interface {
	Create(ctx context.Context, rec *PaymentRecord) error
	Get(ctx context.Context, clientReference string) (*PaymentRecord, error)
	ListByUser(ctx context.Context, userID string) ([]PaymentRecord, error)
	ListPendingByUser(ctx context.Context, userID string) ([]PaymentRecord, error)
	CompareAndSwap(ctx context.Context, clientReference string, cond SwapCondition, mut Mutation) (*PaymentRecord, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, rec *PaymentRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDup(err) {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (s *GormStore) Get(ctx context.Context, clientReference string) (*PaymentRecord, error) {
	var rec PaymentRecord
	err := s.db.WithContext(ctx).
		First(&rec, "client_reference = ?", clientReference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownReference
		}
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) ListByUser(ctx context.Context, userID string) ([]PaymentRecord, error) {
	var recs []PaymentRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (s *GormStore) ListPendingByUser(ctx context.Context, userID string) ([]PaymentRecord, error) {
	var recs []PaymentRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, StatusPending).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// CompareAndSwap performs the transition as one conditional UPDATE; the
// WHERE clause is the atomicity guarantee, no row lock or transaction
// needed. RowsAffected == 0 means another writer got there first (or the
// reference never existed).
func (s *GormStore) CompareAndSwap(ctx context.Context, clientReference string, cond SwapCondition, mut Mutation) (*PaymentRecord, error) {
	now := time.Now()

	q := s.db.WithContext(ctx).Model(&PaymentRecord{}).
		Where("client_reference = ? AND status = ?", clientReference, cond.Status)
	if cond.RequireToken {
		q = q.Where("webhook_token IS NOT NULL")
	}

	updates := map[string]any{
		"status":        mut.Status,
		"webhook_token": nil,
		"notes":         mut.Notes,
		"updated_at":    now,
	}
	if mut.PaymentDate != nil {
		updates["payment_date"] = mut.PaymentDate
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, clientReference); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}

	return s.Get(ctx, clientReference)
}

func isDup(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
