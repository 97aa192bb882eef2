package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
	"github.com/fyrsmithlabs/namingd/internal/mirror"
	"github.com/fyrsmithlabs/namingd/internal/resolver"
)

// seedFile is the TOML layout accepted by "namingd import":
//
//	[[morpheme]]
//	name = "价格"
//	abbr = "PRC"
//	full_name = "price"
//	synonyms = "定价, 售价"
//
//	[[composite]]
//	name = "客户价格"
//	morphemes = ["客户", "价格"]   # en_name defaults to CUST_PRC
type seedFile struct {
	Morphemes  []seedMorpheme  `toml:"morpheme"`
	Composites []seedComposite `toml:"composite"`
}

type seedMorpheme struct {
	Name     string `toml:"name"`
	Abbr     string `toml:"abbr"`
	FullName string `toml:"full_name"`
	Synonyms string `toml:"synonyms"`
	Remark   string `toml:"remark"`
}

type seedComposite struct {
	Name       string   `toml:"name"`
	EnName     string   `toml:"en_name"`
	Morphemes  []string `toml:"morphemes"`
	DataType   string   `toml:"data_type"`
	Synonyms   string   `toml:"synonyms"`
	IsStandard *bool    `toml:"is_standard"`
}

// importSummary counts what an import did.
type importSummary struct {
	Morphemes        int
	Composites       int
	SkippedMorphemes int
	SkippedComposite int
	Partial          int
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <seed.toml>",
		Short: "Load morphemes and standard fields from a TOML seed file",
		Long: `Load morphemes and composites from a TOML seed file.

Morphemes are inserted in one transaction and embedded in one batch.
Composites list their morphemes by name; en_name defaults to the
abbreviations joined with "_". Rows whose name already exists are skipped,
so a seed file can be imported more than once.

Examples:
  namingd import seed.toml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := loadSeed(args[0])
			if err != nil {
				return err
			}
			cfg, logger, err := loadConfig(opts.configPath, os.Stderr)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer a.Close()

			sum, err := importSeed(cmd.Context(), a, seed)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

// loadSeed decodes path. Unknown keys are rejected so typos do not
// silently drop data.
func loadSeed(path string) (*seedFile, error) {
	var seed seedFile
	md, err := toml.DecodeFile(path, &seed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: unknown keys in %s: %s", catalog.ErrValidation, path, strings.Join(keys, ", "))
	}
	if err := seed.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &seed, nil
}

func importSeed(ctx context.Context, a *app, seed *seedFile) (importSummary, error) {
	var sum importSummary
	if err := a.mirror.EnsureCollections(ctx); err != nil {
		return sum, err
	}

	ids, err := morphemeIDs(ctx, a.store)
	if err != nil {
		return sum, err
	}

	var fresh []catalog.Morpheme
	for _, sm := range seed.Morphemes {
		if _, ok := ids[strings.TrimSpace(sm.Name)]; ok {
			sum.SkippedMorphemes++
			continue
		}
		fresh = append(fresh, catalog.Morpheme{
			Name:     sm.Name,
			Abbr:     sm.Abbr,
			FullName: sm.FullName,
			Synonyms: sm.Synonyms,
			Remark:   sm.Remark,
		})
	}
	if len(fresh) > 0 {
		res, err := a.standards.CreateMorphemes(ctx, fresh)
		if err != nil {
			return sum, fmt.Errorf("importing morphemes: %w", err)
		}
		sum.Morphemes = len(fresh)
		if res.Status() == mirror.StatusPartial {
			sum.Partial++
			a.logger.Warn("morphemes stored but not indexed", zap.Error(res.Err))
		}
		if ids, err = morphemeIDs(ctx, a.store); err != nil {
			return sum, err
		}
	}

	existing, err := compositeNames(ctx, a.store)
	if err != nil {
		return sum, err
	}
	for i, sc := range seed.Composites {
		name := strings.TrimSpace(sc.Name)
		if _, ok := existing[name]; ok {
			sum.SkippedComposite++
			continue
		}
		c, err := buildComposite(sc, ids)
		if err != nil {
			return sum, fmt.Errorf("composite %d (%s): %w", i+1, name, err)
		}
		res, err := a.standards.CreateComposite(ctx, c)
		if err != nil {
			return sum, fmt.Errorf("composite %d (%s): %w", i+1, name, err)
		}
		existing[name] = struct{}{}
		sum.Composites++
		if res.Status() == mirror.StatusPartial {
			sum.Partial++
			a.logger.Warn("composite stored but not indexed", zap.String("name", name), zap.Error(res.Err))
		}
	}
	return sum, nil
}

type morphemeRef struct {
	id   int64
	abbr string
}

func buildComposite(sc seedComposite, ids map[string]morphemeRef) (*catalog.CompositeEntity, error) {
	if len(sc.Morphemes) == 0 {
		return nil, fmt.Errorf("%w: morphemes is required", catalog.ErrValidation)
	}
	c := &catalog.CompositeEntity{
		Name:       sc.Name,
		EnName:     sc.EnName,
		DataType:   sc.DataType,
		Synonyms:   sc.Synonyms,
		IsStandard: sc.IsStandard == nil || *sc.IsStandard,
	}
	var unknown []string
	abbrs := make([]string, 0, len(sc.Morphemes))
	for _, n := range sc.Morphemes {
		ref, ok := ids[strings.TrimSpace(n)]
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		c.CompositionIDs = append(c.CompositionIDs, ref.id)
		abbrs = append(abbrs, ref.abbr)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown morphemes %s", catalog.ErrValidation, strings.Join(unknown, ", "))
	}
	if c.EnName == "" {
		c.EnName = strings.Join(abbrs, resolver.Separator)
	}
	return c, nil
}

func morphemeIDs(ctx context.Context, store *catalog.GormStore) (map[string]morphemeRef, error) {
	ids := make(map[string]morphemeRef)
	err := store.EachMorpheme(ctx, 500, func(page []catalog.Morpheme) error {
		for _, m := range page {
			ids[m.Name] = morphemeRef{id: m.ID, abbr: m.Abbr}
		}
		return nil
	})
	return ids, err
}

func compositeNames(ctx context.Context, store *catalog.GormStore) (map[string]struct{}, error) {
	names := make(map[string]struct{})
	err := store.EachComposite(ctx, 500, func(page []catalog.CompositeEntity) error {
		for _, c := range page {
			names[c.Name] = struct{}{}
		}
		return nil
	})
	return names, err
}

func printSummary(w io.Writer, sum importSummary) {
	fmt.Fprintf(w, "morphemes:  %d imported, %d skipped\n", sum.Morphemes, sum.SkippedMorphemes)
	fmt.Fprintf(w, "composites: %d imported, %d skipped\n", sum.Composites, sum.SkippedComposite)
	if sum.Partial > 0 {
		fmt.Fprintf(w, "%d write(s) are not indexed yet; run \"namingd resync\"\n", sum.Partial)
	}
}

var errNoSeed = errors.New("seed file has no morphemes or composites")

func (s *seedFile) validate() error {
	if len(s.Morphemes) == 0 && len(s.Composites) == 0 {
		return errNoSeed
	}
	return nil
}
