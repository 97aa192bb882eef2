package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/namingd/internal/mirror"
	"github.com/fyrsmithlabs/namingd/internal/resolver"
	"github.com/fyrsmithlabs/namingd/internal/search"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "resolve_name",
		Description: "Turn a business phrase (usually Chinese) into a standard identifier by joining the abbreviations of its morphemes with '_'. Unknown words appear as [word] and are listed in missing.",
	}, s.resolveName)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_catalog",
		Description: "Search standard fields (composites) or morphemes. Substring matches on name, abbreviation and synonyms come first; when there are none, the nearest entries by meaning are returned.",
	}, s.searchCatalog)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "similar_morphemes",
		Description: "Find the morphemes closest in meaning to a word, for choosing an abbreviation when resolve_name reports it missing.",
	}, s.similarMorphemes)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "request_field",
		Description: "Ask the catalog maintainers to add a standard field that does not exist yet.",
	}, s.requestField)
}

type resolveNameInput struct {
	Phrase string `json:"phrase" jsonschema:"Phrase to resolve, e.g. 客户价格日期"`
}

type resolveNameOutput struct {
	Identifier string          `json:"identifier" jsonschema:"Identifier built from the matched abbreviations"`
	Complete   bool            `json:"complete" jsonschema:"True when every word matched a morpheme"`
	Missing    []string        `json:"missing" jsonschema:"Words with no morpheme"`
	Parts      []resolver.Part `json:"parts" jsonschema:"Per-word resolution in phrase order"`
}

func (s *Server) resolveName(ctx context.Context, _ *mcp.CallToolRequest, args resolveNameInput) (res *mcp.CallToolResult, out resolveNameOutput, err error) {
	done := s.metrics.track(ctx, "resolve_name")
	defer func() { done(err) }()

	r, err := s.services.Resolver().Resolve(ctx, args.Phrase)
	if err != nil {
		return nil, resolveNameOutput{}, err
	}
	out = resolveNameOutput{
		Identifier: r.Identifier,
		Complete:   r.Complete(),
		Missing:    r.Missing,
		Parts:      r.Parts,
	}

	text := fmt.Sprintf("%s → %s", r.Phrase, r.Identifier)
	if !r.Complete() {
		text += fmt.Sprintf(" (missing: %s)", strings.Join(r.Missing, ", "))
	}
	return textResult(text), out, nil
}

type searchCatalogInput struct {
	Query      string `json:"query" jsonschema:"Text to look for"`
	Collection string `json:"collection,omitempty" jsonschema:"composites (default) or morphemes"`
}

type searchOutput struct {
	Tier     string       `json:"tier" jsonschema:"lexical or semantic"`
	Hits     []search.Hit `json:"hits" jsonschema:"Matches; semantic hits carry a similarity score"`
	Degraded bool         `json:"degraded,omitempty" jsonschema:"True when the semantic tier was needed but unavailable"`
}

func (s *Server) searchCatalog(ctx context.Context, _ *mcp.CallToolRequest, args searchCatalogInput) (res *mcp.CallToolResult, out searchOutput, err error) {
	done := s.metrics.track(ctx, "search_catalog")
	defer func() { done(err) }()

	collection := args.Collection
	if collection == "" {
		collection = mirror.Composites
	}
	r, err := s.services.Search().Search(ctx, args.Query, collection)
	if err != nil {
		return nil, searchOutput{}, err
	}
	out = searchOutput{Tier: r.Tier.String(), Hits: r.Hits, Degraded: r.Degraded}
	return textResult(formatHits(r)), out, nil
}

type similarMorphemesInput struct {
	Word string `json:"word" jsonschema:"Word to find neighbours for"`
}

func (s *Server) similarMorphemes(ctx context.Context, _ *mcp.CallToolRequest, args similarMorphemesInput) (res *mcp.CallToolResult, out searchOutput, err error) {
	done := s.metrics.track(ctx, "similar_morphemes")
	defer func() { done(err) }()

	r, err := s.services.Search().Semantic(ctx, args.Word, mirror.Morphemes)
	if err != nil {
		return nil, searchOutput{}, err
	}
	out = searchOutput{Tier: r.Tier.String(), Hits: r.Hits}
	return textResult(formatHits(r)), out, nil
}

type requestFieldInput struct {
	Name string `json:"name" jsonschema:"Name of the missing field"`
	Note string `json:"note,omitempty" jsonschema:"Context for the maintainers"`
}

type requestFieldOutput struct {
	ID int64 `json:"id" jsonschema:"Request id"`
}

func (s *Server) requestField(ctx context.Context, _ *mcp.CallToolRequest, args requestFieldInput) (res *mcp.CallToolResult, out requestFieldOutput, err error) {
	done := s.metrics.track(ctx, "request_field")
	defer func() { done(err) }()

	r, err := s.services.Standards().SubmitFieldRequest(ctx, args.Name, args.Note)
	if err != nil {
		return nil, requestFieldOutput{}, err
	}
	return textResult(fmt.Sprintf("Field request %d recorded for %s", r.ID, r.Name)), requestFieldOutput{ID: r.ID}, nil
}

func formatHits(r *search.Result) string {
	if len(r.Hits) == 0 {
		if r.Degraded {
			return fmt.Sprintf("No matches for %q; similarity search unavailable", r.Query)
		}
		return fmt.Sprintf("No matches for %q", r.Query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s match(es) for %q:", len(r.Hits), r.Tier, r.Query)
	for _, h := range r.Hits {
		fmt.Fprintf(&b, "\n- %s: %s", h.Name, h.Label)
		if r.Tier == search.TierSemantic {
			fmt.Fprintf(&b, " (%.3f)", h.Score)
		}
	}
	return b.String()
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}
