// Command biblesync reconciles Bible workspaces in the verse store.
// It scaffolds one translation from another, merges extracted text, imports
// CSV corrections, syncs pericope headings from a Markdown mirror and checks
// chapters for gaps. Every run writes a JSON report and prints its summary.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/biblesync/core/bible"
	"github.com/FocuswithJustin/biblesync/core/errors"
	"github.com/FocuswithJustin/biblesync/internal/config"
	"github.com/FocuswithJustin/biblesync/internal/logging"
	"github.com/FocuswithJustin/biblesync/internal/syncjob"
)

const version = "0.1.0"

// CLI defines the command-line interface for biblesync.
type CLI struct {
	Globals

	Pericopes PericopesCmd `cmd:"" name:"sync-en1-pericopes-usccb" help:"Sync EN1 pericope headings from the Markdown mirror"`
	PDF       PDFCmd       `cmd:"" name:"sync-tb2-from-pdf" help:"Merge PDF-extracted text into TB2"`
	CSV       CSVCmd       `cmd:"" name:"sync-tb2-text-from-csv" help:"Overlay refined verse text from a CSV export"`
	Scaffold  ScaffoldCmd  `cmd:"" name:"sync-tb2-reference-scaffold" help:"Rebuild TB2 structure from TB1 with placeholders"`
	Gaps      GapsCmd      `cmd:"" name:"check-gaps" help:"Report missing verses per chapter"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// Globals are flags shared by every command.
type Globals struct {
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info" enum:"debug,info,warn,error"`
	LogFormat string `name:"log-format" help:"Log format (text, json)" default:"text" enum:"text,json"`
	EnvFile   string `name:"env-file" help:"Environment file (default .env.local, then .env)"`

	// Zero keeps the environment value.
	PageSize   int `name:"page-size" help:"Rows per paginated read"`
	InChunk    int `name:"in-chunk" help:"Ids per chunked IN query"`
	WriteChunk int `name:"write-chunk" help:"Rows per upsert or delete call"`
}

// Env is the process surface a command runs against.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Getenv config.Getenv
}

// OutputFlags control the report of a run.
type OutputFlags struct {
	DryRun      bool   `name:"dry-run" help:"Plan and report without writing to the store"`
	Report      string `help:"Report file (default docs/import/<script>_report.json)"`
	SampleLimit int    `name:"sample-limit" help:"Entries kept per report sample (30-300)" default:"50"`
}

func (o OutputFlags) common() syncjob.Common {
	return syncjob.Common{DryRun: o.DryRun, ReportPath: o.Report, SampleLimit: o.SampleLimit}
}

// PericopesCmd syncs EN1 pericopes.
type PericopesCmd struct {
	Output OutputFlags `embed:""`

	Lang        string `help:"Workspace language" default:"en"`
	Version     string `help:"Workspace version" default:"EN1"`
	BaseURL     string `name:"base-url" help:"Markdown mirror root (default $BIBLESYNC_PERICOPE_BASE_URL)"`
	Only        string `help:"Restrict to a scope, e.g. \"Genesis; Psalms 23; Esther A\""`
	CacheDir    string `name:"cache-dir" help:"Cache fetched pages in this directory"`
	Concurrency int    `help:"Parallel page fetches" default:"5"`
	TimeoutMS   int    `name:"timeout-ms" help:"Per-attempt fetch timeout in milliseconds" default:"20000"`
	Retries     int    `help:"Fetch attempts per page" default:"5"`
	Policy      string `help:"Policy file with slug_overrides"`
}

func (c *PericopesCmd) Run(ctx context.Context, g *Globals, env *Env) error {
	runner, done, err := g.open(ctx, env)
	if err != nil {
		return err
	}
	defer done()

	pol, err := config.LoadPolicy(c.Policy)
	if err != nil {
		return err
	}
	base := c.BaseURL
	if base == "" {
		base = env.Getenv(config.EnvPericopeBaseURL)
	}
	if base == "" {
		return errors.NewConfig("base-url", "set --base-url or "+config.EnvPericopeBaseURL)
	}
	_, err = runner.PericopeSync(ctx, syncjob.PericopeOptions{
		Common:      c.Output.common(),
		Language:    c.Lang,
		Version:     c.Version,
		BaseURL:     base,
		Only:        c.Only,
		CacheDir:    c.CacheDir,
		Concurrency: c.Concurrency,
		Timeout:     time.Duration(c.TimeoutMS) * time.Millisecond,
		Retries:     c.Retries,
		Slug:        pol.Slug,
	})
	return err
}

// PDFCmd merges a PDF extract into TB2.
type PDFCmd struct {
	Output OutputFlags `embed:""`

	Extract         string `help:"Extracted verse JSON" required:""`
	Lang            string `help:"Workspace language" default:"id"`
	Version         string `help:"Target version" default:"TB2"`
	FallbackVersion string `name:"fallback-version" help:"Version supplying structure and fallback text" default:"TB1"`
	Policy          string `help:"Policy file with text_sources and pericope_sources"`
	KeepExtraBooks  bool   `name:"keep-extra-books" help:"Keep target books missing from the fallback version, with all their chapters and verses"`
}

func (c *PDFCmd) Run(ctx context.Context, g *Globals, env *Env) error {
	runner, done, err := g.open(ctx, env)
	if err != nil {
		return err
	}
	defer done()

	pol, err := config.LoadPolicy(c.Policy)
	if err != nil {
		return err
	}
	_, err = runner.PDFMerge(ctx, syncjob.PDFMergeOptions{
		Common:          c.Output.common(),
		ExtractPath:     c.Extract,
		Language:        c.Lang,
		Version:         c.Version,
		FallbackVersion: c.FallbackVersion,
		Policy:          pol.Merge,
		KeepExtraBooks:  c.KeepExtraBooks,
	})
	return err
}

// CSVCmd imports verse text from CSV.
type CSVCmd struct {
	Output OutputFlags `embed:""`

	Lang      string `help:"Workspace language" default:"id"`
	Version   string `help:"Workspace version" default:"TB2"`
	CSV       string `name:"csv" help:"CSV export with book_name, chapter, verse and text columns" required:""`
	CleanText bool   `name:"clean-text" help:"Normalize typography before comparing"`
}

func (c *CSVCmd) Run(ctx context.Context, g *Globals, env *Env) error {
	runner, done, err := g.open(ctx, env)
	if err != nil {
		return err
	}
	defer done()

	_, err = runner.CSVImport(ctx, syncjob.CSVImportOptions{
		Common:    c.Output.common(),
		CSVPath:   c.CSV,
		Language:  c.Lang,
		Version:   c.Version,
		CleanText: c.CleanText,
	})
	return err
}

// ScaffoldCmd rebuilds the TB2 structure from TB1.
type ScaffoldCmd struct {
	Output OutputFlags `embed:""`

	Lang           string `help:"Workspace language" default:"id"`
	SourceVersion  string `name:"source-version" help:"Reference version" default:"TB1"`
	TargetVersion  string `name:"target-version" help:"Version to scaffold" default:"TB2"`
	KeepExtraBooks bool   `name:"keep-extra-books" help:"Keep target books missing from the reference, with all their chapters and verses"`
}

func (c *ScaffoldCmd) Run(ctx context.Context, g *Globals, env *Env) error {
	runner, done, err := g.open(ctx, env)
	if err != nil {
		return err
	}
	defer done()

	_, err = runner.Scaffold(ctx, syncjob.ScaffoldOptions{
		Common:         c.Output.common(),
		Language:       c.Lang,
		SourceVersion:  c.SourceVersion,
		TargetVersion:  c.TargetVersion,
		KeepExtraBooks: c.KeepExtraBooks,
	})
	return err
}

// GapsCmd checks a workspace for missing verses.
type GapsCmd struct {
	Report      string `help:"Report file (default docs/import/check_gaps_report.json)"`
	SampleLimit int    `name:"sample-limit" help:"Entries kept per report sample (30-300)" default:"50"`

	Workspace string `short:"w" help:"Workspace as language/version, e.g. id/TB2"`
	Lang      string `help:"Workspace language"`
	Version   string `help:"Workspace version"`
	Only      string `help:"Restrict to a scope, e.g. \"Kejadian; Rut 2\""`
	Lenient   bool   `help:"Count placeholder and blank rows as present"`
}

// workspace resolves --workspace or the --lang and --version pair.
func (c *GapsCmd) workspace() (bible.Workspace, error) {
	if c.Workspace != "" {
		if c.Lang != "" || c.Version != "" {
			return bible.Workspace{}, errors.NewValidation("workspace", "use --workspace or --lang with --version, not both")
		}
		return bible.ParseWorkspace(c.Workspace)
	}
	if c.Lang == "" || c.Version == "" {
		return bible.Workspace{}, errors.NewValidation("workspace", "set --workspace or both --lang and --version")
	}
	return bible.Workspace{Language: c.Lang, Version: c.Version}, nil
}

func (c *GapsCmd) Run(ctx context.Context, g *Globals, env *Env) error {
	ws, err := c.workspace()
	if err != nil {
		return err
	}
	runner, done, err := g.open(ctx, env)
	if err != nil {
		return err
	}
	defer done()

	_, err = runner.GapCheck(ctx, syncjob.GapCheckOptions{
		Common:   syncjob.Common{ReportPath: c.Report, SampleLimit: c.SampleLimit},
		Language: ws.Language,
		Version:  ws.Version,
		Only:     c.Only,
		Lenient:  c.Lenient,
	})
	return err
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	fmt.Fprintf(env.Stdout, "biblesync version %s\n", version)
	return nil
}

// open configures logging, loads the environment and connects to the store.
// The returned func closes the store.
func (g *Globals) open(ctx context.Context, env *Env) (*syncjob.Runner, func(), error) {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return nil, nil, errors.NewConfig("log-level", err.Error())
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return nil, nil, errors.NewConfig("log-format", err.Error())
	}
	logging.InitLogger(level, format, env.Stderr)

	files, err := config.LoadEnvFiles(g.EnvFile)
	if err != nil {
		return nil, nil, err
	}
	logging.DebugContext(ctx, "environment loaded", "files", files)

	cfg, err := config.StoreFromEnv(env.Getenv)
	if err != nil {
		return nil, nil, err
	}
	if g.PageSize > 0 {
		cfg.Limits.PageSize = g.PageSize
	}
	if g.InChunk > 0 {
		cfg.Limits.InChunkSize = g.InChunk
	}
	if g.WriteChunk > 0 {
		cfg.Limits.WriteChunkSize = g.WriteChunk
	}

	repo, backend, err := cfg.OpenRepository(ctx)
	if err != nil {
		return nil, nil, err
	}
	logging.InfoContext(ctx, "store opened", "backend", cfg.Kind())
	done := func() {
		if err := backend.Close(); err != nil {
			logging.WarnContext(ctx, "closing store", "error", err)
		}
	}
	return &syncjob.Runner{Repo: repo, Stdout: env.Stdout}, done, nil
}

func newParser(ctx context.Context, cli *CLI, env *Env) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("biblesync"),
		kong.Description("Bible workspace reconciliation"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Writers(env.Stdout, env.Stderr),
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(env),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx = logging.WithRunID(ctx, logging.NewRunID())

	env := &Env{Stdout: os.Stdout, Stderr: os.Stderr, Getenv: os.Getenv}
	var cli CLI
	parser, err := newParser(ctx, &cli, env)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	err = kctx.Run(&cli.Globals)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
