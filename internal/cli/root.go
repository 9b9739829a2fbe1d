package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hlopes/crawld/internal/admission"
	"github.com/hlopes/crawld/internal/build"
	"github.com/hlopes/crawld/internal/config"
	"github.com/hlopes/crawld/internal/frontier"
	"github.com/hlopes/crawld/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile             string
	dbDSN               string
	outputDir           string
	userAgent           string
	timeout             time.Duration
	numberOfTasks       int
	hookDisabled        bool
	appVersion          string
	seedURL             string
	crawlingMode        string
	urlsLimit           int
	forbiddenDomains    []string
	forbiddenKeywords   []string
	allowedPathPrefixes []string
	tokenID             int64
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docs-crawler",
	Short: "A local-only documentation crawler.",
	Long: `docs-crawler is a CLI application that crawls static documentation
websites and converts their content into clean, semantically faithful Markdown,
optimized for LLM Retrieval-Augmented Generation (RAG) workflows.

A crawl is either started fresh with "start" or continued with "resume";
"tokens" lists every session recorded in the frontier database.`,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new crawl session from a seed URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfigForStart()
		if err != nil {
			return err
		}
		mode, ok := admission.ParseCrawlingMode(crawlingMode)
		if !ok {
			return fmt.Errorf("%w: crawlingMode %q", config.ErrInvalidConfig, crawlingMode)
		}
		return runSession(func(mgr *session.Manager) (bool, error) {
			return mgr.Start(context.Background(), seedURL, mode, cfg)
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a previously started crawl session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenID == 0 {
			return fmt.Errorf("%w: --token-id is required", config.ErrInvalidConfig)
		}
		cfg, err := buildConfigForResume()
		if err != nil {
			return err
		}
		return runSession(func(mgr *session.Manager) (bool, error) {
			return mgr.Resume(context.Background(), tokenID, cfg)
		})
	},
}

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "List crawl sessions recorded in the frontier database",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := frontier.Open(dbDSN)
		if err != nil {
			return err
		}
		defer store.Close()

		summaries, err := store.ListTokens(context.Background())
		if err != nil {
			return err
		}
		for _, s := range summaries {
			fmt.Printf("%d\t%s\t%s\ttotal=%d\tunprocessed=%d\n",
				s.ID, s.URL, s.Created.Format(time.RFC3339), s.TotalURLs, s.NotProcessedURLs)
		}
		return nil
	},
}

func runSession(run func(mgr *session.Manager) (bool, error)) error {
	store, err := frontier.Open(dbDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	mgr := session.New(store, logger)
	ran, err := run(mgr)
	if err != nil {
		return err
	}
	if !ran {
		fmt.Println("a crawl is already in progress; request ignored")
	}
	return nil
}

func buildConfigForStart() (config.Config, error) {
	if cfgFile != "" {
		return config.WithConfigFile(cfgFile)
	}
	parsed, err := url.Parse(seedURL)
	if err != nil {
		return config.Config{}, fmt.Errorf("%w: seed-url: %s", config.ErrInvalidConfig, err)
	}
	return applyCommonOverrides(config.WithDefault(*parsed)).Build()
}

func buildConfigForResume() (config.Config, error) {
	if cfgFile != "" {
		return config.WithConfigFile(cfgFile)
	}
	builder := config.WithDefault(url.URL{}).WithTokenID(tokenID)
	return applyCommonOverrides(builder).Build()
}

func applyCommonOverrides(builder *config.Config) *config.Config {
	if dbDSN != "" {
		builder = builder.WithDBDsn(dbDSN)
	}
	if outputDir != "" {
		builder = builder.WithOutputDir(outputDir)
	}
	if userAgent != "" {
		builder = builder.WithUserAgent(userAgent)
	}
	if timeout > 0 {
		builder = builder.WithTimeout(timeout)
	}
	if numberOfTasks > 0 {
		builder = builder.WithNumberOfTasks(numberOfTasks)
	}
	if hookDisabled {
		builder = builder.WithHookDisabled(true)
	}
	if appVersion != "" {
		builder = builder.WithAppVersion(appVersion)
	} else {
		builder = builder.WithAppVersion(build.FullVersion())
	}
	if urlsLimit > 0 {
		limit := urlsLimit
		builder = builder.WithUrlsLimit(&limit)
	}
	if len(forbiddenDomains) > 0 {
		builder = builder.WithForbiddenDomains(forbiddenDomains)
	}
	if len(forbiddenKeywords) > 0 {
		builder = builder.WithForbiddenKeywords(forbiddenKeywords)
	}
	if len(allowedPathPrefixes) > 0 {
		builder = builder.WithAllowedPathPrefixes(allowedPathPrefixes)
	}
	return builder
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.json)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", "crawld.db", "frontier database path")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "root output directory for crawled content")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout for a single HTTP fetch")
	rootCmd.PersistentFlags().IntVar(&numberOfTasks, "number-of-tasks", 0, "number of concurrent fetch workers")
	rootCmd.PersistentFlags().BoolVar(&hookDisabled, "hook-disabled", false, "disable the reference Markdown content hook")
	rootCmd.PersistentFlags().StringVar(&appVersion, "app-version", "", "version string stamped into generated frontmatter")

	startCmd.Flags().StringVar(&seedURL, "seed-url", "", "starting URL for the crawl (required)")
	startCmd.Flags().StringVar(&crawlingMode, "crawling-mode", "", "DOMAIN_ONLY, DOMAIN_AND_SUBDOMAINS, or ALL")
	startCmd.Flags().IntVar(&urlsLimit, "urls-limit", 0, "soft cap on total admitted URLs (0 for unlimited)")
	startCmd.Flags().StringArrayVar(&forbiddenDomains, "forbidden-domain", []string{}, "regex pattern rejecting matching hosts (can be repeated)")
	startCmd.Flags().StringArrayVar(&forbiddenKeywords, "forbidden-keyword", []string{}, "regex pattern rejecting matching URLs (can be repeated)")
	startCmd.Flags().StringArrayVar(&allowedPathPrefixes, "allowed-path-prefix", []string{}, "path prefixes stripped before deriving a document's section")

	resumeCmd.Flags().Int64Var(&tokenID, "token-id", 0, "id of the session to resume (required)")

	rootCmd.AddCommand(startCmd, resumeCmd, tokensCmd)
}
