// Package main is the nasab CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/nasab/internal/catalog"
	"github.com/hyperjump/nasab/internal/cli"
	"github.com/hyperjump/nasab/internal/config"
	"github.com/hyperjump/nasab/internal/export"
	"github.com/hyperjump/nasab/internal/models"
	"github.com/hyperjump/nasab/internal/names"
	"github.com/hyperjump/nasab/internal/ranges"
	"github.com/hyperjump/nasab/internal/server"
	"github.com/hyperjump/nasab/internal/session"
	"github.com/hyperjump/nasab/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/nasab/config.yaml"

// indexBatchSize is how many pages are written to the local index at once.
const indexBatchSize = 500

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// When neither exists, defaults plus environment overrides are returned.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	var err error
	switch command {
	case "server":
		err = runServer(args)
	case "patterns":
		err = runPatterns(args, os.Stdout)
	case "search":
		err = runSearch(args, os.Stdout)
	case "export":
		err = runExport(args, os.Stdout)
	case "index":
		err = runIndex(args, os.Stdout)
	case "ranges":
		err = runRanges(args, os.Stdout)
	case "texts":
		err = runTexts(args, os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("nasab version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// formFlags are the flags describing one name form.
type formFlags struct {
	kunyas stringList
	nisbas stringList
	nasab  *string
	flags  *string
}

func addFormFlags(fs *flag.FlagSet) *formFlags {
	f := &formFlags{}
	fs.Var(&f.kunyas, "kunya", "kunya, e.g. \"ابو منصور\" (repeatable)")
	fs.Var(&f.nisbas, "nisba", "nisba, e.g. \"الاصبهاني\" (repeatable)")
	f.nasab = fs.String("nasab", "", "nasab, e.g. \"معمر بن احمد بن زياد\"")
	f.flags = fs.String("flags", "", "comma-separated pattern flags: "+strings.Join(names.FlagNames, ", "))
	return f
}

func (f *formFlags) form() (names.NameForm, error) {
	form := names.NameForm{
		Kunyas: []string(f.kunyas),
		Nasab:  *f.nasab,
		Nisbas: []string(f.nisbas),
	}
	if *f.flags == "" {
		return form, nil
	}
	for _, name := range strings.Split(*f.flags, ",") {
		if !form.Flags.Set(strings.TrimSpace(name)) {
			return form, fmt.Errorf("unknown flag %q (known: %s)", name, strings.Join(names.FlagNames, ", "))
		}
	}
	return form, nil
}

// searchFlags select a search either from a form plus text selection, or
// from an encoded query string as produced by the API.
type searchFlags struct {
	form  *formFlags
	texts *string
	page  *int
	query *string
}

func addSearchFlags(fs *flag.FlagSet) *searchFlags {
	return &searchFlags{
		form:  addFormFlags(fs),
		texts: fs.String("texts", "", "restrict to text ids, e.g. 1-3,7"),
		page:  fs.Int("page", 1, "result page (1-based)"),
		query: fs.String("q", "", "encoded search parameters (f1_kunya=...&texts=...); overrides the form flags"),
	}
}

func (s *searchFlags) params() (session.SearchParams, error) {
	if *s.query != "" {
		return session.Decode(*s.query)
	}
	form, err := s.form.form()
	if err != nil {
		return session.SearchParams{}, err
	}
	ids, err := ranges.Decompress(*s.texts)
	if err != nil {
		return session.SearchParams{}, err
	}
	return session.SearchParams{
		Forms:           []names.NameForm{form},
		SelectedTextIDs: ids,
		Page:            *s.page,
	}, nil
}

func newLogger(cfg *config.Config, debug bool) (*zap.Logger, error) {
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg, *debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("backend", cfg.Backend.Kind),
		zap.Bool("debug", cfg.Debug || *debug),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	srv := server.NewServer(components.Sessions, components.Catalog, components.Metrics, &cfg.Server, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	g.Go(func() error {
		return components.Sessions.RunExpiry(gctx, time.Minute, cfg.Server.SessionTTL)
	})
	if components.Catalog != nil {
		g.Go(func() error {
			// The server answers with 503 on text endpoints until this succeeds.
			if err := components.Catalog.Load(gctx); err != nil {
				logger.Warn("metadata not loaded", zap.Error(err))
			}
			return nil
		})
		if cfg.Catalog.Watch {
			w := catalog.NewWatcher(components.Catalog, catalog.WithLogger(logger))
			g.Go(func() error { return w.Run(gctx) })
		}
	}
	return g.Wait()
}

func runPatterns(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("patterns", flag.ExitOnError)
	form := addFormFlags(fs)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}
	f, err := form.form()
	if err != nil {
		return err
	}
	return cli.WritePatterns(out, f.Patterns(), format)
}

func runSearch(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty searches the configured backend directly")
	outputFormat := fs.String("output", "text", "output format: text or json")
	sf := addSearchFlags(fs)
	_ = fs.Parse(argsReorder(args))

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}
	params, err := sf.params()
	if err != nil {
		return err
	}

	if *serverURL != "" {
		res, err := searchViaHTTP(*serverURL, params)
		if err != nil {
			return err
		}
		return cli.WriteSearchResult(out, res, format)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	if components.Catalog != nil {
		if err := components.Catalog.Load(context.Background()); err != nil {
			logger.Warn("metadata not loaded, titles unavailable", zap.Error(err))
		}
	}

	sess := components.Sessions.Create()
	res, err := sess.Search(context.Background(), params)
	if err != nil {
		return err
	}
	return cli.WriteSearchResult(out, res, format)
}

// searchViaHTTP runs one search through a running server's session API.
func searchViaHTTP(serverURL string, params session.SearchParams) (*session.Result, error) {
	base := strings.TrimRight(serverURL, "/") + "/api/v1/sessions"
	resp, err := http.Post(base, "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var created struct {
		ID string `json:"id"`
	}
	err = decodeResponse(resp, http.StatusCreated, &created)
	if err != nil {
		return nil, err
	}
	sessionURL := base + "/" + url.PathEscape(created.ID)
	defer func() {
		req, err := http.NewRequest(http.MethodDelete, sessionURL, nil)
		if err == nil {
			if resp, err := http.DefaultClient.Do(req); err == nil {
				_ = resp.Body.Close()
			}
		}
	}()

	resp, err = http.Get(sessionURL + "/search?" + session.Encode(params))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var res session.Result
	if err := decodeResponse(resp, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func decodeResponse(resp *http.Response, want int, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runExport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outPath := fs.String("out", "", "xlsx file to write (default search_results_YYYY-MM-DD.xlsx); - prints rows")
	outputFormat := fs.String("output", "text", "row format when -out is -: text or json")
	sf := addSearchFlags(fs)
	_ = fs.Parse(argsReorder(args))

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}
	params, err := sf.params()
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	if components.Catalog != nil {
		if err := components.Catalog.Load(context.Background()); err != nil {
			logger.Warn("metadata not loaded, titles unavailable", zap.Error(err))
		}
	}

	rows, err := components.Sessions.Create().Export(context.Background(), params)
	if err != nil {
		return err
	}
	if *outPath == "-" {
		return cli.WriteRows(out, rows, format)
	}
	path := *outPath
	if path == "" {
		path = export.FileName(time.Now())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteXLSX(f, rows); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Exported %d rows to %s\n", len(rows), path)
	return nil
}

// readPages decodes one JSON page per line and calls fn for every batch.
func readPages(r io.Reader, batchSize int, fn func([]models.Page) error) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	batch := make([]models.Page, 0, batchSize)
	total, line := 0, 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var p models.Page
		if err := json.Unmarshal([]byte(text), &p); err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		if p.ID == "" {
			return total, fmt.Errorf("line %d: page_id is required", line)
		}
		batch = append(batch, p)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return total, err
	}
	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return total, err
		}
		total += len(batch)
	}
	return total, nil
}

func runIndex(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(argsReorder(args))

	if fs.NArg() < 1 {
		return errors.New("usage: nasab index [flags] <pages.jsonl|->")
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Backend.Kind != config.BackendLocal {
		return fmt.Errorf("index writes to the local backend; backend.kind is %q", cfg.Backend.Kind)
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	var in io.Reader = os.Stdin
	if path := fs.Arg(0); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	ctx := context.Background()
	n, err := readPages(in, indexBatchSize, func(pages []models.Page) error {
		return components.Local.Index(ctx, pages)
	})
	if err != nil {
		return fmt.Errorf("indexing failed after %d pages: %w", n, err)
	}
	count, _ := components.Local.DocCount()
	fmt.Fprintf(out, "Indexed %d page(s); index holds %d\n", n, count)
	return nil
}

func runRanges(args []string, out io.Writer) error {
	if len(args) < 1 {
		return errors.New("usage: nasab ranges <compress ids...|decompress range>")
	}
	switch args[0] {
	case "compress":
		var ids []int
		for _, a := range args[1:] {
			for _, field := range strings.FieldsFunc(a, func(r rune) bool { return r == ',' || r == ' ' }) {
				id, err := strconv.Atoi(field)
				if err != nil {
					return fmt.Errorf("invalid id %q", field)
				}
				ids = append(ids, id)
			}
		}
		if err := ranges.CheckIDs(ids); err != nil {
			return err
		}
		fmt.Fprintln(out, ranges.Compress(ids))
		return nil
	case "decompress":
		if len(args) != 2 {
			return errors.New("usage: nasab ranges decompress <range>")
		}
		ids, err := ranges.Decompress(args[1])
		if err != nil {
			return err
		}
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.Itoa(id)
		}
		fmt.Fprintln(out, strings.Join(parts, ","))
		return nil
	}
	return fmt.Errorf("unknown ranges command %q", args[0])
}

func runTexts(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("texts", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	var collections, genres stringList
	fs.Var(&collections, "collection", "collection to include (repeatable)")
	fs.Var(&genres, "genre", "genre tag to include (repeatable)")
	from := fs.Int("from", -1, "earliest author death year")
	to := fs.Int("to", -1, "latest author death year")
	term := fs.String("term", "", "match titles and author names")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	cat, err := components.loadCatalog(context.Background())
	if err != nil {
		return err
	}
	texts := cat.Filter(textFilter(cat, collections, genres, *from, *to, *term))
	return cli.WriteTexts(out, cli.TextList{Texts: texts, IDs: ranges.Compress(catalog.IDs(texts))}, format)
}

// textFilter builds a catalog filter; negative years leave that bound at
// the catalog's own range.
func textFilter(cat *catalog.Catalog, collections, genres []string, from, to int, term string) catalog.Filter {
	f := catalog.Filter{Collections: collections, Genres: genres, Term: term}
	if from < 0 && to < 0 {
		return f
	}
	dr := catalog.DateRange{Min: 0, Max: 1 << 30}
	if cat.DateRange != nil {
		dr = *cat.DateRange
	}
	if from >= 0 {
		dr.Min = from
	}
	if to >= 0 {
		dr.Max = to
	}
	f.DateRange = &dr
	return f
}

func printUsage() {
	fmt.Println(`nasab - Search historical Arabic texts for a person's name

Usage:
  nasab server [flags]                  Start the HTTP server
  nasab patterns [flags]                Print the search patterns for a name
  nasab search [flags]                  Search for a name
  nasab export [flags]                  Export all matches to a spreadsheet
  nasab index [flags] <pages.jsonl|->   Add pages to the local index
  nasab ranges compress <ids...>        Compress ids to a range string
  nasab ranges decompress <range>       Expand a range string
  nasab texts [flags]                   List and filter catalog texts
  nasab version                         Show version
  nasab help                            Show this help

Name Flags (patterns, search, export):
  --kunya string     Kunya, repeatable (e.g. "ابو منصور")
  --nasab string     Nasab (e.g. "معمر بن احمد بن زياد")
  --nisba string     Nisba, repeatable (e.g. "الاصبهاني")
  --flags string     Comma-separated pattern flags:
                     rare_kunya_nisba, two_nasab, kunya_nasab,
                     one_nasab_nisba, one_nasab, single_field

Search/Export Flags:
  --config string    Config file path (default: /usr/local/etc/nasab/config.yaml)
  --texts string     Restrict to text ids (e.g. 1-3,7)
  --page int         Result page, search only (default: 1)
  --q string         Encoded search parameters; overrides the name flags
  --server string    Search through a running server instead of the backend
  --out string       Export file; "-" prints rows
  --output string    Output format: text or json (default: text)

Texts Flags:
  --collection, --genre (repeatable), --from, --to (death years), --term

Environment:
  NASAB_API_URL, NASAB_API_USER, NASAB_API_PASS, NASAB_API_INDEX
  override the backend section; a .env file is read when present.

Examples:
  nasab patterns --kunya "ابو منصور" --nasab "معمر بن احمد" --nisba "الاصبهاني"
  nasab search --nasab "معمر بن احمد" --texts 1-200 --output json
  nasab export --kunya "ابو منصور" --nasab "معمر" --flags kunya_nasab
  nasab ranges compress 1 2 3 7
  nasab texts --genre tarajim --to 500`)
}
