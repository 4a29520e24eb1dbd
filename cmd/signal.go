package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutorbar/internal/notify"
)

var signalCmd = &cobra.Command{
	Use:   "signal <validated|result>",
	Short: "Broadcast a learning signal to running panels",
	Example: `  tutorbar signal validated
  tutorbar signal result --correct=false`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"validated", "result"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		base := cfg.Signals.URL
		if base == "" {
			base = "http://" + cfg.Server.Addr + "/signals"
		}

		var (
			name    string
			payload json.RawMessage
		)
		switch strings.ToLower(args[0]) {
		case "validated":
			name = notify.SignalAnswerValidated
		case "result":
			correct, _ := cmd.Flags().GetBool("correct")
			name = notify.SignalAnswerResult
			payload = notify.EncodeAnswerResult(correct)
		default:
			return fmt.Errorf("unknown signal %q (want validated or result)", args[0])
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := notify.NewHTTPPublisher(base, nil).Publish(ctx, name, payload); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", name)
		return nil
	},
}

func init() {
	signalCmd.Flags().Bool("correct", true, "Result of the answer (result signal only)")
}
