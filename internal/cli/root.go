package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/vcr_agent/internal/config"
	"github.com/dgnsrekt/vcr_agent/internal/recorder"
	"github.com/dgnsrekt/vcr_agent/internal/storage"
)

var errUsage = errors.New("expected exactly one capture URL")

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "recorder <url>",
	Short: "Record a page's network traffic into a replayable cassette",
	Long: `recorder loads a URL in a browser, captures every request/response pair
the page produces (including JavaScript-triggered loads), and writes the
result as a VCR-style YAML cassette suitable for replay in automated tests.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errUsage
		}
		return nil
	},
	RunE: runRecord,
}

func init() {
	rootCmd.Flags().String("cassette-dir", "vcr_cassettes", "directory cassettes are written under")
	rootCmd.Flags().Bool("headless", true, "run the browser headless")
	rootCmd.Flags().String("cdp-address", "127.0.0.1", "CDP listen address")
	rootCmd.Flags().Int("cdp-port", 9222, "CDP listen port")
	rootCmd.Flags().Duration("timeout", 90*time.Second, "overall capture timeout")
	rootCmd.Flags().Duration("settle", 3*time.Second, "extra wait after page load for late resource loads")
	rootCmd.Flags().Bool("journal", false, "write a JSONL debug journal of capture events")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(doctorCmd)
}

// Execute runs the CLI against an explicit config and returns the process
// exit code: 0 on success, 1 on capture/serve failure, 2 on misuse.
func Execute(c *config.Config) int {
	cfg = c
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprint(os.Stderr, rootCmd.UsageString())
			return 2
		}
		slog.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// applyOverrides copies explicitly set flags over the environment config.
func applyOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("cassette-dir") {
		cfg.CassetteDir, _ = flags.GetString("cassette-dir")
	}
	if flags.Changed("headless") {
		cfg.Headless, _ = flags.GetBool("headless")
	}
	if flags.Changed("cdp-address") {
		cfg.CDPAddress, _ = flags.GetString("cdp-address")
	}
	if flags.Changed("cdp-port") {
		cfg.CDPPort, _ = flags.GetInt("cdp-port")
	}
	if flags.Changed("timeout") {
		cfg.CaptureTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("settle") {
		cfg.SettleDelay, _ = flags.GetDuration("settle")
	}
	if flags.Changed("journal") {
		cfg.JournalEnabled, _ = flags.GetBool("journal")
	}
}

func openJournal() *storage.Journal {
	if !cfg.JournalEnabled {
		return nil
	}
	return storage.NewJournal(cfg.JournalDir, cfg.JournalBuffer, cfg.JournalSizeMB)
}

func runRecord(cmd *cobra.Command, args []string) error {
	applyOverrides(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	journal := openJournal()
	defer func() {
		if err := journal.Close(); err != nil {
			slog.Warn("journal close failed", "error", err)
		}
	}()

	svc := recorder.NewService(cfg, nil, journal)
	result, err := svc.Record(ctx, args[0])
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "recorded %d interactions in %s\n",
		result.Interactions, result.Duration.Round(time.Millisecond))
	fmt.Fprintln(cmd.OutOrStdout(), result.Path)
	return nil
}
