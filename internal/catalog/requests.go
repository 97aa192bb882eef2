package catalog

import (
	"context"
	"time"

	"gorm.io/gorm"
)

func (s *GormStore) CreateFieldRequest(ctx context.Context, r *FieldRequest) error {
	r.ID = 0
	r.Done = false
	r.CompletedAt = nil
	return classify("create field request", s.db.WithContext(ctx).Create(r).Error)
}

// ListFieldRequests returns requests oldest first, optionally only open ones.
func (s *GormStore) ListFieldRequests(ctx context.Context, openOnly bool, limit int) ([]FieldRequest, error) {
	q := s.db.WithContext(ctx).Order("id").Limit(clampLimit(limit, maxPage))
	if openOnly {
		q = q.Where("done = ?", false)
	}
	var out []FieldRequest
	return out, classify("list field requests", q.Find(&out).Error)
}

// CompleteFieldRequest marks a request done. Completing a done request is a no-op.
func (s *GormStore) CompleteFieldRequest(ctx context.Context, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r FieldRequest
		if err := tx.Take(&r, id).Error; err != nil {
			return err
		}
		if r.Done {
			return nil
		}
		now := time.Now().UTC()
		return tx.Model(&r).Updates(map[string]interface{}{"done": true, "completed_at": now}).Error
	})
	return classify("complete field request", err)
}

func (s *GormStore) CountOpenFieldRequests(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&FieldRequest{}).Where("done = ?", false).Count(&n).Error
	return n, classify("count field requests", err)
}
