package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/labsearch/internal/config"
	"github.com/Aman-CERP/labsearch/internal/daemon"
	"github.com/Aman-CERP/labsearch/internal/output"
	"github.com/Aman-CERP/labsearch/internal/search"
	"github.com/Aman-CERP/labsearch/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	category     string
	onlyCategory bool
	page         int
	limit        int
	format       string // "text", "json"
	local        bool   // bypass the server
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Search the indexed documents.

Queries are full-text. A category boosts hits tagged with it; with
--only-category the category becomes a filter. Known categories are
"file", "navigation" and those listed under index.categories.

Examples:
  labsearch search plasma assay
  labsearch search "sample prep" --category protocol --only-category
  labsearch search plasma --page 2 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Boost hits in this category")
	cmd.Flags().BoolVar(&opts.onlyCategory, "only-category", false, "Only return hits in --category")
	cmd.Flags().IntVarP(&opts.page, "page", "p", 1, "Result page, starting at 1")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Hits per page (0 uses index.page_size)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Open the index directly instead of asking the server")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q (use text or json)", opts.format)
	}

	params := daemon.SearchParams{
		Query:        query,
		Category:     opts.category,
		OnlyCategory: opts.onlyCategory,
		Page:         opts.page,
		Limit:        opts.limit,
	}
	if err := params.Validate(); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	categories, err := search.CategoriesFromNames(cfg.Index.Categories...)
	if err != nil {
		return err
	}
	if err := categories.Check(params.Category); err != nil {
		return fmt.Errorf("--category: %w", err)
	}

	slog.Info("search_started", slog.String("query", params.Query), slog.Int("page", params.Page))

	if client := controlClient(cfg); !opts.local && client.IsRunning() {
		res, err := client.Search(ctx, params)
		if err == nil {
			slog.Info("search_complete", slog.String("mode", "server"), slog.Uint64("total", res.Total))
			return writeSearchResult(cmd.OutOrStdout(), params, res, opts.format)
		}
		slog.Warn("server search failed, falling back to local", slog.String("error", err.Error()))
	}

	res, err := searchLocal(ctx, cfg, params)
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.String("mode", "local"), slog.Uint64("total", res.Total))
	return writeSearchResult(cmd.OutOrStdout(), params, res, opts.format)
}

// searchLocal opens the index without starting the worker.
func searchLocal(ctx context.Context, cfg *config.Config, params daemon.SearchParams) (*daemon.SearchResult, error) {
	st, err := openStack(cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.close() }()

	res, err := st.svc.Search(ctx, params.Query, params.Options())
	if err != nil {
		return nil, err
	}
	return &daemon.SearchResult{Hits: res.Hits, Total: res.Total, Page: params.Page}, nil
}

func writeSearchResult(w io.Writer, params daemon.SearchParams, res *daemon.SearchResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	offset := 0
	if params.Limit > 0 {
		offset = (params.Page - 1) * params.Limit
	} else if len(res.Hits) > 0 {
		offset = (params.Page - 1) * len(res.Hits)
	}
	output.New(w).Hits(params.Query, &store.Result{Hits: res.Hits, Total: res.Total}, offset)
	return nil
}
