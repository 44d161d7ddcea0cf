package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/brand-verifier/internal/verify"
)

const pingPrompt = "What is the capital of France? Answer in one word."

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send one simple query to the configured search backend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		answerer, err := initAnswerer(cfg)
		if err != nil {
			return err
		}

		timeout := seconds(cfg.Search.TimeoutSecs)
		if timeout <= 0 {
			timeout = time.Minute
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		start := time.Now()
		ans, err := ping(ctx, answerer)
		if err != nil {
			return eris.Wrapf(err, "ping %s", cfg.Search.Backend)
		}
		fmt.Fprintf(os.Stdout, "%s OK in %s: %s (%d sources)\n",
			cfg.Search.Backend, time.Since(start).Round(time.Millisecond), ans.Message, len(ans.Sources))
		return nil
	},
}

func ping(ctx context.Context, a verify.Answerer) (*verify.RawAnswer, error) {
	ans, err := a.Answer(ctx, verify.Query{Prompt: pingPrompt})
	if err != nil {
		return nil, err
	}
	if ans == nil || ans.Message == "" {
		return nil, eris.New("empty answer")
	}
	return ans, nil
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
