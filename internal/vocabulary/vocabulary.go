// Package vocabulary segments text into dictionary terms.
//
// A Vocabulary holds two layers of weighted terms: a base layer loaded from
// a dictionary file (or the bundled simplified Chinese dictionary) and an override layer maintained at runtime as catalog
// morphemes come and go. Segmentation picks, for each run of word
// characters, the split with the highest total log probability under the
// merged dictionary. Updates take an exclusive lock, so every Segment call
// observes either all or none of a given AddTerm or RemoveTerm.
package vocabulary

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"
)

// CatalogWeight is the default weight for catalog-managed terms. It is high
// enough that a catalog term always beats a split into common words.
const CatalogWeight = 99999

var (
	// ErrEmptyTerm is returned when adding a blank term.
	ErrEmptyTerm = errors.New("vocabulary: empty term")

	// ErrInvalidWeight is returned for non-positive weights.
	ErrInvalidWeight = errors.New("vocabulary: weight must be positive")
)

// Vocabulary is a concurrency-safe weighted dictionary and segmenter.
type Vocabulary struct {
	mu        sync.RWMutex
	base      map[string]float64
	overrides map[string]float64
	total     float64
	maxRunes  int
}

// New returns an empty Vocabulary.
func New() *Vocabulary {
	return &Vocabulary{
		base:      make(map[string]float64),
		overrides: make(map[string]float64),
	}
}

// Load replaces the base layer with entries read from r.
//
// Each non-empty line holds a term, an optional positive weight (default
// 1) and an optional tag, separated by whitespace. Lines starting with #
// are comments. Overrides are kept.
func (v *Vocabulary) Load(r io.Reader) (int, error) {
	base := make(map[string]float64)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		weight := 1.0
		if len(fields) > 1 {
			w, err := strconv.ParseFloat(fields[1], 64)
			if err != nil || w <= 0 {
				return 0, fmt.Errorf("vocabulary: line %d: invalid weight %q", lineNo, fields[1])
			}
			weight = w
		}
		base[fields[0]] = weight
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("vocabulary: reading dictionary: %w", err)
	}

	v.setBase(base)
	return len(base), nil
}

// setBase swaps in a new base layer. The map is never written afterwards.
func (v *Vocabulary) setBase(base map[string]float64) {
	v.mu.Lock()
	v.base = base
	v.recompute()
	v.mu.Unlock()
}

// LoadFile loads the base layer from a dictionary file.
func (v *Vocabulary) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("vocabulary: %w", err)
	}
	defer f.Close()
	return v.Load(f)
}

// AddTerm inserts term into the override layer, replacing any previous
// weight. It is visible to every Segment call that starts after it returns.
func (v *Vocabulary) AddTerm(term string, weight float64) error {
	term = strings.TrimSpace(term)
	if term == "" {
		return ErrEmptyTerm
	}
	if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return ErrInvalidWeight
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.total -= v.weightLocked(term)
	v.overrides[term] = weight
	v.total += weight
	if n := utf8.RuneCountInString(term); n > v.maxRunes {
		v.maxRunes = n
	}
	return nil
}

// RemoveTerm drops term from the override layer. A term that is also in
// the base layer falls back to its base weight. It reports whether the
// override existed.
func (v *Vocabulary) RemoveTerm(term string) bool {
	term = strings.TrimSpace(term)

	v.mu.Lock()
	defer v.mu.Unlock()

	w, ok := v.overrides[term]
	if !ok {
		return false
	}
	delete(v.overrides, term)
	v.total -= w
	v.total += v.base[term]
	return true
}

// Has reports whether term is in either layer.
func (v *Vocabulary) Has(term string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.weightLocked(term) > 0
}

// Weight returns the effective weight of term, or 0.
func (v *Vocabulary) Weight(term string) float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.weightLocked(term)
}

// Len returns the number of distinct terms.
func (v *Vocabulary) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := len(v.base)
	for term := range v.overrides {
		if _, ok := v.base[term]; !ok {
			n++
		}
	}
	return n
}

// Segment splits text into tokens. Concatenating the tokens yields text.
func (v *Vocabulary) Segment(text string) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var tokens []string
	for _, blk := range splitBlocks(text) {
		if !blk.word {
			for _, r := range blk.text {
				tokens = append(tokens, string(r))
			}
			continue
		}
		tokens = v.cutLocked([]rune(blk.text), tokens)
	}
	return tokens
}

// Tokens yields the segmentation of text lazily. The dictionary snapshot is
// taken when iteration starts, so each pass reflects the state at that time.
func (v *Vocabulary) Tokens(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, tok := range v.Segment(text) {
			if !yield(tok) {
				return
			}
		}
	}
}

func (v *Vocabulary) weightLocked(term string) float64 {
	if w, ok := v.overrides[term]; ok {
		return w
	}
	return v.base[term]
}

func (v *Vocabulary) recompute() {
	v.total = 0
	v.maxRunes = 0
	for term, w := range v.base {
		if _, ok := v.overrides[term]; ok {
			continue
		}
		v.total += w
		v.maxRunes = max(v.maxRunes, utf8.RuneCountInString(term))
	}
	for term, w := range v.overrides {
		v.total += w
		v.maxRunes = max(v.maxRunes, utf8.RuneCountInString(term))
	}
}

// cutLocked appends the best-route split of one word block to tokens.
func (v *Vocabulary) cutLocked(runes []rune, tokens []string) []string {
	n := len(runes)
	if n == 0 {
		return tokens
	}

	logTotal := math.Log(max(v.total, 1))

	// best[i] is the score of the best split of runes[i:]; next[i] is the
	// end of the first word on that split.
	best := make([]float64, n+1)
	next := make([]int, n+1)
	for i := n - 1; i >= 0; i-- {
		best[i] = math.Inf(-1)
		limit := min(n, i+max(v.maxRunes, 1))
		for j := i + 1; j <= limit; j++ {
			w := v.weightLocked(string(runes[i:j]))
			if w <= 0 {
				if j != i+1 {
					continue
				}
				w = 1
			}
			score := math.Log(w) - logTotal + best[j]
			// Ties keep the longer word, since later j overwrite on >=.
			if score >= best[i] {
				best[i] = score
				next[i] = j
			}
		}
	}

	// Adjacent single ASCII letters or digits that are not words on their
	// own are merged, so unknown codes like "v2x" stay whole.
	var buf []rune
	flush := func() {
		if len(buf) > 0 {
			tokens = append(tokens, string(buf))
			buf = buf[:0]
		}
	}
	for i := 0; i < n; i = next[i] {
		word := runes[i:next[i]]
		if len(word) == 1 && isASCIIAlnum(word[0]) {
			buf = append(buf, word[0])
			continue
		}
		flush()
		tokens = append(tokens, string(word))
	}
	flush()
	return tokens
}
