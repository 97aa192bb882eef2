package vocabulary

import (
	"fmt"
	"sync"

	"github.com/go-ego/gse"
)

// builtinBase parses the dictionary once per process. The returned map is
// shared read-only between every Vocabulary that loads it.
var builtinBase = sync.OnceValues(func() (map[string]float64, error) {
	seg := gse.Segmenter{SkipLog: true, SkipSubSeg: true, NotLoadHMM: true}
	if err := seg.LoadDictEmbed("zh_s"); err != nil {
		return nil, fmt.Errorf("vocabulary: loading builtin dictionary: %w", err)
	}
	base := make(map[string]float64, seg.Dict.NumTokens())
	for i := range seg.Dict.Tokens {
		tok := &seg.Dict.Tokens[i]
		if text := tok.Text(); text != "" && tok.Freq() > 0 {
			base[text] = tok.Freq()
		}
	}
	return base, nil
})

// LoadBuiltin replaces the base layer with the simplified Chinese dictionary
// embedded in gse. It is used when no dictionary file is configured.
func (v *Vocabulary) LoadBuiltin() (int, error) {
	base, err := builtinBase()
	if err != nil {
		return 0, err
	}
	v.setBase(base)
	return len(base), nil
}
