package catalog

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Morpheme is a vocabulary unit: a canonical term with its abbreviation.
type Morpheme struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;not null;size:128;uniqueIndex:idx_morpheme_name" json:"name"`
	Abbr      string    `gorm:"column:abbr;not null;size:64;index" json:"abbr"`
	FullName  string    `gorm:"column:full_name;size:256" json:"full_name,omitempty"`
	Synonyms  string    `gorm:"column:synonyms;type:text" json:"synonyms,omitempty"`
	Remark    string    `gorm:"column:remark;type:text" json:"remark,omitempty"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Morpheme) TableName() string { return "morpheme" }

// EmbeddingText is the text the similarity index embeds for m.
func (m *Morpheme) EmbeddingText() string {
	return joinNonEmpty(m.Name, m.FullName, m.Synonyms)
}

// HasSynonym reports whether token is one of m's whitespace-delimited
// synonyms, ignoring case.
func (m *Morpheme) HasSynonym(token string) bool {
	for _, s := range strings.Fields(m.Synonyms) {
		if strings.EqualFold(s, token) {
			return true
		}
	}
	return false
}

func (m *Morpheme) normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Abbr = strings.TrimSpace(m.Abbr)
	m.FullName = strings.TrimSpace(m.FullName)
	m.Synonyms = NormalizeSynonyms(m.Synonyms)
	m.Remark = strings.TrimSpace(m.Remark)
}

// CompositeEntity is a standard field: a canonical name and identifier
// composed from an ordered list of morphemes.
type CompositeEntity struct {
	ID             int64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string                     `gorm:"column:name;not null;size:256;uniqueIndex:idx_composite_name" json:"name"`
	EnName         string                     `gorm:"column:en_name;not null;size:256;index" json:"en_name"`
	CompositionIDs datatypes.JSONSlice[int64] `gorm:"column:composition_ids" json:"composition_ids"`
	DataType       string                     `gorm:"column:data_type;size:64" json:"data_type,omitempty"`
	Synonyms       string                     `gorm:"column:synonyms;type:text" json:"synonyms,omitempty"`
	IsStandard     bool                       `gorm:"column:is_standard;not null" json:"is_standard"`
	CreatedAt      time.Time                  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time                  `gorm:"not null" json:"updated_at"`
}

func (CompositeEntity) TableName() string { return "composite_entity" }

// EmbeddingText is the text the similarity index embeds for c.
func (c *CompositeEntity) EmbeddingText() string {
	return joinNonEmpty(c.Name, c.Synonyms)
}

func (c *CompositeEntity) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.EnName = strings.TrimSpace(c.EnName)
	c.DataType = strings.TrimSpace(c.DataType)
	c.Synonyms = NormalizeSynonyms(c.Synonyms)
	if c.CompositionIDs == nil {
		c.CompositionIDs = datatypes.JSONSlice[int64]{}
	}
}

// FieldRequest asks the catalog maintainers to add a missing standard field.
type FieldRequest struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string     `gorm:"column:name;not null;size:256" json:"name"`
	Note        string     `gorm:"column:note;type:text" json:"note,omitempty"`
	Done        bool       `gorm:"column:done;not null;index" json:"done"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (FieldRequest) TableName() string { return "field_request" }

var synonymSeparators = strings.NewReplacer(",", " ", "，", " ", "、", " ", ";", " ", "；", " ", "|", " ")

// NormalizeSynonyms rewrites list separators to single spaces.
func NormalizeSynonyms(s string) string {
	return strings.Join(strings.Fields(synonymSeparators.Replace(s)), " ")
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
