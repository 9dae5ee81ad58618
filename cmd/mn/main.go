package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailnudge/internal/config"
	"github.com/daviddao/mailnudge/internal/db"
	"github.com/daviddao/mailnudge/internal/logging"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	dbPath      string
	configPath  string
	jsonOutput  bool
	quietFlag   bool
	verboseFlag bool

	cfg    config.Config
	logger *slog.Logger
	store  *db.DB
)

var rootCmd = &cobra.Command{
	Use:           "mn",
	Short:         "mn - email-driven reminders and conflict-aware milestones",
	Long:          "Mailnudge: turn command emails into reminders, notes and calendar milestones, and send daily briefings.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "help", "version", "quickstart":
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.Log.Level
		if verboseFlag {
			level = "debug"
		}
		logger = logging.New(level)

		switch cmd.Name() {
		case "init", "nudge", "note", "log":
			// init creates the database; the others are parents.
			return nil
		case "triggers":
			// Works without a database, just without processed markers.
			if path := resolveDBPath(); path != "" {
				if store, err = db.Open(path); err != nil {
					store = nil
				}
			}
			return nil
		}

		path := resolveDBPath()
		if path == "" {
			return errors.New("no mailnudge database found, run 'mn init' first")
		}
		store, err = db.Open(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			store.Close()
		}
	},
}

func resolveDBPath() string {
	switch {
	case dbPath != "":
		return dbPath
	case cfg.DB.Path != "":
		return cfg.DB.Path
	default:
		return db.DiscoverDB()
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mn version %s\n", Version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize .mailnudge/ in the project root",
	RunE: func(cmd *cobra.Command, args []string) error {
		root := db.FindProjectRoot()
		if root == "" {
			return errors.New("could not find project root (no .git directory found)")
		}

		dir := filepath.Join(root, config.DirName)
		path := filepath.Join(dir, "mail.db")
		s, err := db.Open(path)
		if err != nil {
			return err
		}
		s.Close()

		cfgPath := filepath.Join(dir, config.FileName)
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			if err := config.Write(cfgPath, config.Default()); err != nil {
				return err
			}
		}

		if err := ensureGitignore(root); err != nil {
			logger.Warn("could not update .gitignore", "err", err)
		}

		if !quietFlag {
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized mailnudge at %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "Edit %s to configure channels\n", cfgPath)
		}
		return nil
	},
}

// ensureGitignore adds .mailnudge/ to .gitignore if not already present.
func ensureGitignore(root string) error {
	path := filepath.Join(root, ".gitignore")
	entry := config.DirName + "/"

	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	scanner := bufio.NewScanner(strings.NewReader(string(existing)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == entry || line == config.DirName {
			return nil
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(f, "\n# Mailnudge database and config (may hold credentials)\n%s\n", entry)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: auto-discover .mailnudge/mail.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $MAILNUDGE_CONFIG or .mailnudge/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
