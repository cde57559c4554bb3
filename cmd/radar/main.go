package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/radar/internal/compose"
	"github.com/TobiSchelling/radar/internal/config"
	"github.com/TobiSchelling/radar/internal/database"
	"github.com/TobiSchelling/radar/internal/llm"
	"github.com/TobiSchelling/radar/internal/logging"
	"github.com/TobiSchelling/radar/internal/pipeline"
	"github.com/TobiSchelling/radar/internal/server"
	"github.com/TobiSchelling/radar/internal/translate"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "radar",
	Short:        "Startup opportunity radar",
	Long:         "radar discovers business reports from a feed, extracts problem statements, and scores them as startup opportunity cards.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup("info", verbose)

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logging.Setup(cfg.Logging.Level, verbose)
		log.Debug().Str("config", path).Str("data_dir", cfg.GetDataDir()).Msg("configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reprocessCmd)
	rootCmd.AddCommand(requeueCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(fixKoCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("radar", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/radar/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the feed, API key variable, and LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show repository and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Data directory: %s\n\n", db.Dir())
		fmt.Println("Reports:")
		fmt.Printf("  Total: %d\n", stats.TotalDocuments)
		for _, s := range []database.IngestionStatus{database.StatusPending, database.StatusProcessed, database.StatusFailed, database.StatusSkipped} {
			fmt.Printf("  %s: %d\n", strings.ToUpper(string(s[:1]))+string(s[1:]), stats.ByStatus[s])
		}
		fmt.Println("\nSignals:")
		fmt.Printf("  Opportunity cards: %d\n", stats.Cards)
		fmt.Printf("  Discarded: %d\n", stats.Discarded)

		fmt.Println("\nRuns:")
		fmt.Printf("  Recorded: %d\n", stats.Runs)
		last, err := db.LastRun()
		if err != nil {
			return fmt.Errorf("reading last run: %w", err)
		}
		if last != nil {
			fmt.Printf("  Last: %s (%d discovered, %d processed, %d failed, %d accepted)\n",
				last.FinishedAt.Local().Format("2006-01-02 15:04"), last.Discovered, last.Processed, last.Failed, last.Accepted)
		}

		provider := llm.CreateProvider(cfg.LLM, cfg.APIKey())
		fmt.Println("\nLLM:")
		fmt.Printf("  Provider: %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model)
		if llm.Available(provider) {
			fmt.Println("  Available: yes")
		} else {
			fmt.Println("  Available: no (structuring and translation are skipped)")
		}
		return nil
	},
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover new reports and extract opportunity cards",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if dryRun {
			for _, line := range pipeline.DryRun(cfg, db) {
				fmt.Println(line)
			}
			return nil
		}

		ctx, stop := signalContext()
		defer stop()

		result, err := pipeline.New(cfg, db).DiscoverAndProcess(ctx)
		if result != nil {
			printResult(result)
		}
		if err != nil {
			return err
		}
		fmt.Println("\nRun complete. Use 'radar serve' or 'radar export' to view the cards.")
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

var reprocessYes bool

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Delete all cards and re-extract them from every stored report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !reprocessYes && !confirm("This deletes all opportunity cards and discarded signals. Continue?") {
			return fmt.Errorf("aborted")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signalContext()
		defer stop()

		result, err := pipeline.New(cfg, db).Reprocess(ctx)
		if result != nil {
			printResult(result)
		}
		return err
	},
}

func init() {
	reprocessCmd.Flags().BoolVarP(&reprocessYes, "yes", "y", false, "Skip confirmation")
}

var requeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Move failed reports back to pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.RequeueFailed()
		if err != nil {
			return err
		}
		fmt.Printf("Requeued %d failed report(s).\n", n)
		return nil
	},
}

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all reports, cards, and discarded signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes && !confirm("This clears every stored report and signal. Continue?") {
			return fmt.Errorf("aborted")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Reset(); err != nil {
			return err
		}
		fmt.Println("Repository reset. Run 'radar run' to discover reports again.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip confirmation")
}

// --- fix-ko command ---

var fixKoDryRun bool

var fixKoCmd = &cobra.Command{
	Use:   "fix-ko",
	Short: "Re-translate missing or non-Korean card fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		cards := db.Cards.FindAll()
		if fixKoDryRun {
			n := 0
			for i := range cards {
				for _, f := range translate.PlanCardFixes(&cards[i]) {
					fmt.Printf("  %s %s: %s\n", f.CardID, f.Field, f.Reason)
					n++
				}
			}
			fmt.Printf("%d field(s) need fixing across %d card(s).\n", n, len(cards))
			return nil
		}

		provider := llm.CreateProvider(cfg.LLM, cfg.APIKey())
		if !llm.Available(provider) {
			return fmt.Errorf("LLM provider not available")
		}
		tr := translate.NewTranslator(provider, cfg.LLM.MaxTokens)

		ctx, stop := signalContext()
		defer stop()

		fixed, skipped := 0, 0
		for i := range cards {
			if ctx.Err() != nil {
				break
			}
			for _, f := range tr.TranslateCard(ctx, &cards[i]) {
				switch {
				case f.New != nil:
					fixed++
				case f.Skipped():
					skipped++
				}
			}
		}

		if fixed > 0 {
			if err := db.Cards.SaveAll(cards); err != nil {
				return fmt.Errorf("saving cards: %w", err)
			}
		}
		fmt.Printf("Fixed %d field(s), skipped %d without source text.\n", fixed, skipped)
		return ctx.Err()
	},
}

func init() {
	fixKoCmd.Flags().BoolVar(&fixKoDryRun, "dry-run", false, "List fields that need fixing without translating")
}

// --- export command ---

var (
	exportLang     string
	exportFormat   string
	exportMinScore int
	exportOutput   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the opportunity digest as Markdown or HTML",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		out := compose.Digest(db.FindAllDocuments(), db.FindAllAccepted(), compose.Options{
			Korean:   exportLang == "ko",
			MinScore: exportMinScore,
		})

		switch exportFormat {
		case "md", "markdown":
		case "html":
			out, err = server.RenderMarkdown(out)
			if err != nil {
				return fmt.Errorf("rendering HTML: %w", err)
			}
		default:
			return fmt.Errorf("unknown format %q (want md or html)", exportFormat)
		}

		if exportOutput == "" || exportOutput == "-" {
			fmt.Print(out)
			return nil
		}
		if err := os.WriteFile(exportOutput, []byte(out), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", exportOutput, err)
		}
		fmt.Printf("Wrote %s\n", exportOutput)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportLang, "lang", "en", "Language of the digest (en or ko)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "Output format (md or html)")
	exportCmd.Flags().IntVar(&exportMinScore, "min-score", 0, "Only include cards scoring at least this")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		ctx, stop := signalContext()
		defer stop()

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func printResult(r *pipeline.Result) {
	fmt.Println("\nRun summary:")
	fmt.Printf("  Discovered: %d\n", r.Discovered)
	if r.Requeued > 0 {
		fmt.Printf("  Retried: %d\n", r.Requeued)
	}
	fmt.Printf("  Processed: %d\n", r.Processed)
	fmt.Printf("  Failed: %d\n", r.Failed)
	fmt.Printf("  Opportunity cards: %d\n", r.Accepted)
	fmt.Printf("  Discarded: %d\n", r.Discarded)
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.GetDataDir())
}
