package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"ytresolve/catalog"
	"ytresolve/config"
	ythttp "ytresolve/http"
	"ytresolve/internal/retry"
	"ytresolve/repair"
	"ytresolve/storage"
	"ytresolve/youtube"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "validate":
		cmdValidate(args)
	case "import":
		cmdImport(args)
	case "repair":
		cmdRepair(args)
	case "replacements":
		cmdReplacements(args)
	case "serve":
		cmdServe(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ytresolve - YouTube reference validator and repair tool

Usage:
  ytresolve validate [flags]              Re-check catalog items and persist results
  ytresolve import <catalog.json>         Load a catalog file into the store
  ytresolve repair [flags] <youtube-url>  Resolve one reference, print the outcome as JSON
  ytresolve replacements [flags]          Show the replacement audit log
  ytresolve serve [flags]                 Serve the repair API over HTTP
  ytresolve help                          Show this help message

Examples:
  ytresolve import resources.json                         # Seed the store
  ytresolve validate                                      # Check stale items only
  ytresolve validate --force                              # Check everything
  ytresolve repair https://youtu.be/dQw4w9WgXcQ           # One-off repair
  ytresolve repair --title "Intro to Go" <url>            # Enable replacement search
  ytresolve replacements --limit 20                       # Recent audit entries
  ytresolve serve --addr :8080                            # HTTP surface

For help on a specific command: ytresolve <command> -h
`)
}

// loadConfig exits on error so commands can assume a valid config.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// buildClassifier assembles the dual-probe classifier. Without an API key the
// status probe is skipped and verdicts rest on the metadata probe alone.
func buildClassifier(cfg *config.Config) (*youtube.Classifier, *youtube.DataAPIClient) {
	metadata := youtube.NewOEmbedClient(ythttp.New(nil))

	var status youtube.StatusProber
	var api *youtube.DataAPIClient
	if cfg.APIKey != "" {
		var err error
		api, err = youtube.NewDataAPIClient(cfg.APIKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating API client: %v\n", err)
			os.Exit(1)
		}
		status = api
	}

	classifier := youtube.NewClassifier(metadata, status, youtube.ClassifierOptions{
		ProbeTimeout: cfg.ProbeTimeout,
		Embed:        youtube.EmbedOptions{Origin: cfg.EmbedOrigin},
	})
	return classifier, api
}

func buildResolver(cfg *config.Config, store storage.Store) *repair.Resolver {
	classifier, api := buildClassifier(cfg)

	var search repair.Searcher
	if api != nil {
		search = api
	}
	var auditLog repair.ReplacementLogger
	if store != nil {
		auditLog = store
	}

	return repair.NewResolver(repair.Config{
		Enabled:       cfg.EnableRepair,
		AdminToken:    cfg.AdminToken,
		RateLimit:     cfg.RepairRateLimit,
		RateWindow:    cfg.RepairRateWindow,
		SearchResults: cfg.SearchResults,
		Retry: &retry.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			Multiplier:     cfg.BackoffMultiplier,
		},
	}, classifier, search, auditLog)
}

func openStore(cfg *config.Config) *storage.JSONStore {
	store, err := storage.NewJSONStore(cfg.StorePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store %s: %v\n", cfg.StorePath, err)
		os.Exit(1)
	}
	return store
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	force := fs.Bool("force", false, "Re-check every item, ignoring the staleness window")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytresolve validate [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	ctx := context.Background()
	items, err := store.LoadCatalog(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
		os.Exit(1)
	}
	if len(items) == 0 {
		fmt.Println("No catalog items. Run 'ytresolve import' first.")
		return
	}

	if !*force && !catalog.NeedsRevalidation(items, time.Now()) {
		fmt.Printf("All %d items checked within the last %s, nothing to do (use --force to override).\n",
			len(items), catalog.StaleAfter)
		return
	}

	classifier, _ := buildClassifier(cfg)
	validator := catalog.NewValidator(classifier, catalog.ValidatorOptions{
		LinkTimeout: cfg.LinkTimeout,
		Concurrency: cfg.ValidateConcurrency,
	})

	fmt.Fprintf(os.Stderr, "Validating %d items...\n", len(items))
	validated := validator.Validate(ctx, items)

	if err := store.SaveCatalog(ctx, validated); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving catalog: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tURL")
	broken := 0
	for _, item := range validated {
		status := "ok"
		if item.Broken {
			status = "broken"
			broken++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.ID, item.Type, status, truncate(item.URL, 60))
	}
	w.Flush()

	fmt.Fprintf(os.Stderr, "\nTotal: %d items, %d broken\n", len(validated), broken)
}

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytresolve import <catalog.json>\n")
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing catalog file\n")
		fs.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(argv[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", argv[0], err)
		os.Exit(1)
	}

	var items []catalog.Item
	if err := json.Unmarshal(data, &items); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing %s: %v\n", argv[0], err)
		os.Exit(1)
	}

	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	if err := store.SaveCatalog(context.Background(), items); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving catalog: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Imported %d items into %s\n", len(items), cfg.StorePath)
}

func cmdRepair(args []string) {
	fs := flag.NewFlagSet("repair", flag.ExitOnError)
	title := fs.String("title", "", "Known title, used to search for a replacement")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytresolve repair [flags] <youtube-url>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	argv := fs.Args()
	if len(argv) == 0 {
		fmt.Fprintf(os.Stderr, "Error: missing youtube-url\n")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	resolver := buildResolver(cfg, store)

	out := resolver.Repair(context.Background(), repair.Request{
		URL:       argv[0],
		Title:     *title,
		Token:     cfg.AdminToken,
		ClientKey: "cli",
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding outcome: %v\n", err)
		os.Exit(1)
	}
}

func cmdReplacements(args []string) {
	fs := flag.NewFlagSet("replacements", flag.ExitOnError)
	limit := fs.Int("limit", 50, "Maximum entries to show")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytresolve replacements [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg := loadConfig()
	store := openStore(cfg)
	defer store.Close()

	recs, err := store.ListReplacements(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing replacements: %v\n", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("No replacement records.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tSTATUS\tREASON\tORIGINAL\tREPLACEMENT")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.CreatedAt.Format(time.RFC3339),
			rec.Status,
			rec.Reason,
			rec.OriginalID,
			rec.ReplacementID,
		)
	}
	w.Flush()

	fmt.Fprintf(os.Stderr, "\nTotal: %d records\n", len(recs))
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "Listen address (overrides config)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ytresolve serve [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	cfg := loadConfig()
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	store := openStore(cfg)
	defer store.Close()

	resolver := buildResolver(cfg, store)

	mux := http.NewServeMux()
	repair.NewHandler(resolver, store).Register(mux)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("serve: listening on %s (repair enabled: %v)", cfg.ListenAddr, cfg.EnableRepair)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "Error serving: %v\n", err)
		os.Exit(1)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
