package catalog

import (
	"context"

	"gorm.io/gorm"
)

// SearchComposites returns composites whose canonical name or synonyms
// contain query, ignoring case, ordered by id. The identifier is not
// searched.
func (s *GormStore) SearchComposites(ctx context.Context, query string, limit int) ([]CompositeEntity, error) {
	pattern := likePattern(query)
	var out []CompositeEntity
	err := s.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(synonyms) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("id").
		Limit(clampLimit(limit, maxPage)).
		Find(&out).Error
	return out, classify("search composites", err)
}

func (s *GormStore) GetComposite(ctx context.Context, id int64) (*CompositeEntity, error) {
	var c CompositeEntity
	if err := s.db.WithContext(ctx).Take(&c, id).Error; err != nil {
		return nil, classify("get composite", err)
	}
	return &c, nil
}

// ListComposites returns one page, newest first, with the total row count.
func (s *GormStore) ListComposites(ctx context.Context, offset, limit int) ([]CompositeEntity, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&CompositeEntity{}).Count(&total).Error; err != nil {
		return nil, 0, classify("list composites", err)
	}
	var out []CompositeEntity
	err := s.db.WithContext(ctx).Order("id DESC").Offset(max(offset, 0)).Limit(clampLimit(limit, maxPage)).Find(&out).Error
	return out, total, classify("list composites", err)
}

func (s *GormStore) EachComposite(ctx context.Context, pageSize int, fn func([]CompositeEntity) error) error {
	pageSize = clampLimit(pageSize, maxPage)
	var last int64
	for {
		var page []CompositeEntity
		err := s.db.WithContext(ctx).Where("id > ?", last).Order("id").Limit(pageSize).Find(&page).Error
		if err != nil {
			return classify("iterate composites", err)
		}
		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		if len(page) < pageSize {
			return nil
		}
		last = page[len(page)-1].ID
	}
}

func (s *GormStore) CountComposites(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&CompositeEntity{}).Count(&n).Error
	return n, classify("count composites", err)
}

func (s *GormStore) CreateComposite(ctx context.Context, c *CompositeEntity) error {
	c.normalize()
	c.ID = 0
	return classify("create composite", s.db.WithContext(ctx).Create(c).Error)
}

func (s *GormStore) UpdateComposite(ctx context.Context, c *CompositeEntity) error {
	c.normalize()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&CompositeEntity{}, c.ID).Error; err != nil {
			return err
		}
		err := tx.Model(&CompositeEntity{ID: c.ID}).
			Select("name", "en_name", "composition_ids", "data_type", "synonyms", "is_standard", "updated_at").
			Updates(c).Error
		if err != nil {
			return err
		}
		return tx.Take(c, c.ID).Error
	})
	return classify("update composite", err)
}

func (s *GormStore) DeleteComposite(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&CompositeEntity{}, id)
	if res.Error != nil {
		return classify("delete composite", res.Error)
	}
	if res.RowsAffected == 0 {
		return classify("delete composite", gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *GormStore) DeleteAllComposites(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&CompositeEntity{})
	return res.RowsAffected, classify("delete all composites", res.Error)
}
