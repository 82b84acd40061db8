package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/vcr_agent/internal/cdp"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Probe the browser CDP endpoint",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	version, err := cdp.ProbeBrowser(ctx, cfg.CDPURL())
	if err != nil {
		return fmt.Errorf("browser not reachable at %s: %w", cfg.CDPURL(), err)
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "browser ok: %s\n", version.Product)
	fmt.Fprintf(cmd.OutOrStdout(), "protocol: %s\nuser agent: %s\n", version.ProtocolVersion, version.UserAgent)
	return nil
}
