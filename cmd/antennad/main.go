package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hotomoe/io/internal/antenna"
	serverrun "github.com/hotomoe/io/internal/cmd/server"
	cfgpkg "github.com/hotomoe/io/internal/config"
	"github.com/hotomoe/io/internal/feed"
	pebblestore "github.com/hotomoe/io/internal/storage/pebble"
	sqlitestore "github.com/hotomoe/io/internal/store/sqlite"
	logpkg "github.com/hotomoe/io/pkg/log"
)

func main() {
	// Respect ANTENNA_LOG_LEVEL for both CLI and server start output.
	level := os.Getenv("ANTENNA_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by Pebble) to our logger.
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "antennad",
		Short: "Antenna fan-out daemon CLI",
		Long:  "antennad matches newly created notes against saved antennas and fans them out into bounded per-antenna feeds.",
	}

	rootCmd.AddCommand(serverCommand())
	rootCmd.AddCommand(antennaCommand())
	rootCmd.AddCommand(policyCommand())
	rootCmd.AddCommand(feedCommand())

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", logpkg.Err(err))
		os.Exit(1)
	}
}

func serverCommand() *cobra.Command {
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	startCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the antenna fan-out server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			configPath, _ := cmd.Flags().GetString("config")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			mode := pebblestore.FsyncModeAlways
			switch fsyncMode {
			case "never":
				mode = pebblestore.FsyncModeNever
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "always":
				mode = pebblestore.FsyncModeAlways
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfgpkg.FromEnv(&cfg)

			if logLevel != "" {
				_ = os.Setenv("ANTENNA_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("ANTENNA_LOG_FORMAT", logFormat)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:       dataDir,
				Fsync:         mode,
				FsyncInterval: time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:        cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	startCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	startCmd.Flags().String("config", os.Getenv("ANTENNA_CONFIG"), "Path to JSON or YAML config file")
	startCmd.Flags().String("fsync", "always", "Fsync mode for the feed store: always|interval|never")
	startCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms (default 5)")
	startCmd.Flags().String("log-level", os.Getenv("ANTENNA_LOG_LEVEL"), "Log level: debug|info|warn|error")
	startCmd.Flags().String("log-format", os.Getenv("ANTENNA_LOG_FORMAT"), "Log format: text|json (default text)")
	serverCmd.AddCommand(startCmd)
	return serverCmd
}

func antennaCommand() *cobra.Command {
	antennaCmd := &cobra.Command{Use: "antenna", Short: "Antenna administration"}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an antenna",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			owner, _ := cmd.Flags().GetString("owner")
			source, _ := cmd.Flags().GetString("source")
			listID, _ := cmd.Flags().GetString("list-id")
			users, _ := cmd.Flags().GetStringSlice("user")
			keywords, _ := cmd.Flags().GetStringSlice("keywords")
			excludes, _ := cmd.Flags().GetStringSlice("exclude-keywords")
			caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")
			withReplies, _ := cmd.Flags().GetBool("with-replies")
			withFile, _ := cmd.Flags().GetBool("with-file")
			localOnly, _ := cmd.Flags().GetBool("local-only")
			excludeBots, _ := cmd.Flags().GetBool("exclude-bots")

			a := &antenna.Antenna{
				OwnerID:         owner,
				IsActive:        true,
				Source:          antenna.Source(source),
				ListID:          listID,
				Users:           users,
				Keywords:        parseGroups(keywords),
				ExcludeKeywords: parseGroups(excludes),
				CaseSensitive:   caseSensitive,
				WithReplies:     withReplies,
				WithFile:        withFile,
				LocalOnly:       localOnly,
				ExcludeBots:     excludeBots,
			}
			if err := store.CreateAntenna(cmd.Context(), a); err != nil {
				return err
			}
			fmt.Println(a.ID)
			return nil
		},
	}
	createCmd.Flags().String("owner", "", "Owner user id")
	createCmd.Flags().String("source", "home", "Source: home|list|users|users_blacklist")
	createCmd.Flags().String("list-id", "", "User list id (source=list)")
	createCmd.Flags().StringSlice("user", nil, "Account handle (repeatable; source=users/users_blacklist)")
	createCmd.Flags().StringSlice("keywords", nil, "Keyword group: space-separated keywords ANDed within, groups ORed (repeatable)")
	createCmd.Flags().StringSlice("exclude-keywords", nil, "Exclusion keyword group (repeatable)")
	createCmd.Flags().Bool("case-sensitive", false, "Match keywords case-sensitively")
	createCmd.Flags().Bool("with-replies", false, "Include replies")
	createCmd.Flags().Bool("with-file", false, "Require at least one attachment")
	createCmd.Flags().Bool("local-only", false, "Match local notes only")
	createCmd.Flags().Bool("exclude-bots", false, "Skip notes from bot accounts")
	_ = createCmd.MarkFlagRequired("owner")
	antennaCmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List an owner's antennas",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			owner, _ := cmd.Flags().GetString("owner")
			antennas, err := store.ListAntennas(cmd.Context(), owner)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(antennas)
		},
	}
	listCmd.Flags().String("owner", "", "Owner user id")
	_ = listCmd.MarkFlagRequired("owner")
	antennaCmd.AddCommand(listCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an antenna",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			return store.DeleteAntenna(cmd.Context(), args[0])
		},
	}
	antennaCmd.AddCommand(deleteCmd)

	antennaCmd.PersistentFlags().String("data-dir", "", "Data directory holding the antenna database")
	return antennaCmd
}

func policyCommand() *cobra.Command {
	policyCmd := &cobra.Command{Use: "policy", Short: "Feed-limit policy administration"}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Set a user's feed limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			user, _ := cmd.Flags().GetString("user")
			limit, _ := cmd.Flags().GetInt("feed-limit")
			return store.SetPolicy(cmd.Context(), user, limit)
		},
	}
	setCmd.Flags().String("user", "", "User id")
	setCmd.Flags().Int("feed-limit", 200, "Feed entry cap for each of the user's antennas")
	_ = setCmd.MarkFlagRequired("user")
	policyCmd.AddCommand(setCmd)

	policyCmd.PersistentFlags().String("data-dir", "", "Data directory holding the antenna database")
	return policyCmd
}

func feedCommand() *cobra.Command {
	feedCmd := &cobra.Command{Use: "feed", Short: "Feed inspection"}

	readCmd := &cobra.Command{
		Use:   "read <antenna-id>",
		Short: "Print an antenna's feed, most recent first",
		Long:  "Reads the feed directly from the data directory; run it against a stopped server, the feed store is single-process.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			limit, _ := cmd.Flags().GetInt("limit")
			if dataDir == "" {
				dataDir = cfgpkg.DefaultDataDir()
			}

			db, err := pebblestore.Open(pebblestore.Options{
				DataDir: filepath.Join(dataDir, "feeds"),
				Fsync:   pebblestore.FsyncModeNever,
			})
			if err != nil {
				return fmt.Errorf("open feed store: %w", err)
			}
			defer func() { _ = db.Close() }()

			noteIDs, err := feed.NewStore(db).Read(args[0], limit)
			if err != nil {
				return err
			}
			for _, id := range noteIDs {
				fmt.Println(id)
			}

			store, err := sqlitestore.New(filepath.Join(dataDir, "antenna.db"), nil)
			if err != nil {
				return fmt.Errorf("open antenna store: %w", err)
			}
			defer func() { _ = store.Close() }()
			return store.TouchLastUsed(cmd.Context(), args[0], time.Now())
		},
	}
	readCmd.Flags().Int("limit", 0, "Maximum entries to print (0 = all)")
	feedCmd.AddCommand(readCmd)

	feedCmd.PersistentFlags().String("data-dir", "", "Data directory holding the feed store")
	return feedCmd
}

func openStore(cmd *cobra.Command) (*sqlitestore.Store, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = cfgpkg.DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	// The bus is process-local, so CLI mutations have no subscribers to
	// notify; a running server picks them up on its next registry load.
	return sqlitestore.New(filepath.Join(dataDir, "antenna.db"), nil)
}

// parseGroups turns repeated flag values into keyword groups: each value is
// one group whose space-separated words are ANDed.
func parseGroups(values []string) [][]string {
	groups := make([][]string, 0, len(values))
	for _, v := range values {
		words := strings.Fields(v)
		if len(words) > 0 {
			groups = append(groups, words)
		}
	}
	return groups
}
