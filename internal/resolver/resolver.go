// Package resolver turns a free-form phrase into a canonical identifier.
//
// The phrase is segmented with the vocabulary, each token is matched
// against the catalog, and the matched abbreviations are joined with "_".
// Tokens with no catalog entry appear bracketed in the identifier and are
// listed in Resolution.Missing.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("namingd.resolver")

// Separator joins identifier parts.
const Separator = "_"

// Segmenter splits text into tokens. *vocabulary.Vocabulary satisfies it.
type Segmenter interface {
	Segment(text string) []string
}

// Matcher finds the morpheme a token stands for. A miss is (nil, nil).
// catalog.Store satisfies it.
type Matcher interface {
	MatchToken(ctx context.Context, token string) (*catalog.Morpheme, error)
}

// Part is the resolution of one token.
type Part struct {
	Token      string `json:"token"`
	Matched    bool   `json:"matched"`
	MorphemeID int64  `json:"morpheme_id,omitempty"`
	Abbr       string `json:"abbr,omitempty"`
}

// Resolution is the result of Resolve.
type Resolution struct {
	Phrase     string   `json:"phrase"`
	Identifier string   `json:"identifier"`
	Missing    []string `json:"missing"`
	MatchedIDs []int64  `json:"matched_ids"`
	Parts      []Part   `json:"parts"`
}

// Complete reports whether every token matched.
func (r *Resolution) Complete() bool {
	return len(r.Missing) == 0
}

// Resolver maps phrases to identifiers.
type Resolver struct {
	segmenter Segmenter
	matcher   Matcher
	logger    *zap.Logger
}

// New returns a Resolver. A nil logger is replaced with a no-op logger.
func New(segmenter Segmenter, matcher Matcher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{segmenter: segmenter, matcher: matcher, logger: logger}
}

// Resolve segments phrase and matches every non-blank token.
//
// A token matches a morpheme whose canonical name equals it, or whose
// synonym list contains it as a whole word. Misses are data, not errors.
// An empty phrase is catalog.ErrValidation; a catalog failure aborts the
// call with the store's error.
func (r *Resolver) Resolve(ctx context.Context, phrase string) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "Resolver.Resolve")
	defer span.End()

	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, fmt.Errorf("%w: phrase cannot be empty", catalog.ErrValidation)
	}

	res := &Resolution{
		Phrase:     phrase,
		Missing:    []string{},
		MatchedIDs: []int64{},
		Parts:      []Part{},
	}
	memo := make(map[string]*catalog.Morpheme)
	ids := make([]string, 0, 8)

	for _, token := range r.segmenter.Segment(phrase) {
		if strings.TrimSpace(token) == "" {
			continue
		}

		m, seen := memo[token]
		if !seen {
			var err error
			m, err = r.matcher.MatchToken(ctx, token)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, fmt.Errorf("resolving %q: %w", token, err)
			}
			memo[token] = m
		}

		if m == nil {
			res.Missing = append(res.Missing, token)
			res.Parts = append(res.Parts, Part{Token: token})
			ids = append(ids, "["+token+"]")
			continue
		}
		res.MatchedIDs = append(res.MatchedIDs, m.ID)
		res.Parts = append(res.Parts, Part{Token: token, Matched: true, MorphemeID: m.ID, Abbr: m.Abbr})
		ids = append(ids, m.Abbr)
	}
	res.Identifier = strings.Join(ids, Separator)

	span.SetAttributes(
		attribute.Int("tokens", len(res.Parts)),
		attribute.Int("missing", len(res.Missing)),
	)
	r.logger.Debug("resolved phrase",
		zap.String("phrase", phrase),
		zap.String("identifier", res.Identifier),
		zap.Strings("missing", res.Missing),
	)
	return res, nil
}
