package catalog

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

const maxPage = 1000

// MatchToken finds the morpheme a segmented token stands for.
//
// An exact canonical-name match wins. Otherwise the morpheme whose synonym
// list contains token as a whole word (case-insensitive) wins. Within each
// class the lowest id wins. A miss returns (nil, nil).
func (s *GormStore) MatchToken(ctx context.Context, token string) (*Morpheme, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	var exact Morpheme
	err := s.db.WithContext(ctx).Where("name = ?", token).Order("id").Take(&exact).Error
	switch {
	case err == nil:
		return &exact, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, classify("match token", err)
	}

	// The LIKE prefilter narrows candidates; whole-word matching happens here
	// so that a synonym list "费 价格" matches "费" but not "费用".
	var candidates []Morpheme
	err = s.db.WithContext(ctx).
		Where(`LOWER(synonyms) LIKE ? ESCAPE '\'`, likePattern(token)).
		Order("id").
		Find(&candidates).Error
	if err != nil {
		return nil, classify("match token", err)
	}
	for i := range candidates {
		if candidates[i].HasSynonym(token) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// SearchMorphemes returns morphemes whose canonical name or synonyms
// contain query, ignoring case, ordered by id. Abbreviations are not
// searched.
func (s *GormStore) SearchMorphemes(ctx context.Context, query string, limit int) ([]Morpheme, error) {
	pattern := likePattern(query)
	var out []Morpheme
	err := s.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(synonyms) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("id").
		Limit(clampLimit(limit, maxPage)).
		Find(&out).Error
	return out, classify("search morphemes", err)
}

func (s *GormStore) GetMorpheme(ctx context.Context, id int64) (*Morpheme, error) {
	var m Morpheme
	if err := s.db.WithContext(ctx).Take(&m, id).Error; err != nil {
		return nil, classify("get morpheme", err)
	}
	return &m, nil
}

// MorphemesByIDs returns the morphemes for ids in the order given.
// Unknown ids are skipped; repeated ids repeat.
func (s *GormStore) MorphemesByIDs(ctx context.Context, ids []int64) ([]Morpheme, error) {
	if len(ids) == 0 {
		return []Morpheme{}, nil
	}
	var rows []Morpheme
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, classify("morphemes by ids", err)
	}
	byID := make(map[int64]Morpheme, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}
	out := make([]Morpheme, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListMorphemes returns one page, newest first, with the total row count.
func (s *GormStore) ListMorphemes(ctx context.Context, offset, limit int) ([]Morpheme, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Morpheme{}).Count(&total).Error; err != nil {
		return nil, 0, classify("list morphemes", err)
	}
	var out []Morpheme
	err := s.db.WithContext(ctx).Order("id DESC").Offset(max(offset, 0)).Limit(clampLimit(limit, maxPage)).Find(&out).Error
	return out, total, classify("list morphemes", err)
}

// EachMorpheme calls fn with successive pages in id order until the table
// is exhausted or fn fails.
func (s *GormStore) EachMorpheme(ctx context.Context, pageSize int, fn func([]Morpheme) error) error {
	pageSize = clampLimit(pageSize, maxPage)
	var last int64
	for {
		var page []Morpheme
		err := s.db.WithContext(ctx).Where("id > ?", last).Order("id").Limit(pageSize).Find(&page).Error
		if err != nil {
			return classify("iterate morphemes", err)
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

func (s *GormStore) CountMorphemes(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Morpheme{}).Count(&n).Error
	return n, classify("count morphemes", err)
}

func (s *GormStore) CreateMorpheme(ctx context.Context, m *Morpheme) error {
	m.normalize()
	m.ID = 0
	return classify("create morpheme", s.db.WithContext(ctx).Create(m).Error)
}

// CreateMorphemes inserts ms atomically. On success each element carries
// its new id.
func (s *GormStore) CreateMorphemes(ctx context.Context, ms []Morpheme) error {
	if len(ms) == 0 {
		return nil
	}
	for i := range ms {
		ms[i].normalize()
		ms[i].ID = 0
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(ms, 200).Error
	})
	return classify("create morphemes", err)
}

// UpdateMorpheme overwrites the editable columns of m.ID and returns the
// previous row.
func (s *GormStore) UpdateMorpheme(ctx context.Context, m *Morpheme) (*Morpheme, error) {
	m.normalize()
	var prev Morpheme
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&prev, m.ID).Error; err != nil {
			return err
		}
		err := tx.Model(&Morpheme{ID: m.ID}).
			Select("name", "abbr", "full_name", "synonyms", "remark", "updated_at").
			Updates(m).Error
		if err != nil {
			return err
		}
		return tx.Take(m, m.ID).Error
	})
	if err != nil {
		return nil, classify("update morpheme", err)
	}
	return &prev, nil
}

// DeleteMorpheme removes the row and returns it.
func (s *GormStore) DeleteMorpheme(ctx context.Context, id int64) (*Morpheme, error) {
	var m Morpheme
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&m, id).Error; err != nil {
			return err
		}
		return tx.Delete(&Morpheme{}, id).Error
	})
	if err != nil {
		return nil, classify("delete morpheme", err)
	}
	return &m, nil
}

// DeleteAllMorphemes empties the table and returns the removed names.
func (s *GormStore) DeleteAllMorphemes(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Morpheme{}).Order("id").Pluck("name", &names).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Morpheme{}).Error
	})
	if err != nil {
		return nil, classify("delete all morphemes", err)
	}
	return names, nil
}

