package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/trust-aht/internal/agent"
	"github.com/danielpatrickdp/trust-aht/internal/metrics"
	"github.com/danielpatrickdp/trust-aht/internal/orchestrator"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the agent on a stored or freshly generated cohort",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if cmd.Flags().Changed("iterations") {
			e.cfg.Training.Iterations, _ = cmd.Flags().GetInt("iterations")
		}
		if cmd.Flags().Changed("variant") {
			v, _ := cmd.Flags().GetString("variant")
			e.cfg.Agent.Variant = agent.Variant(v)
		}
		if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
			e.cfg.Training.MetricsAddr = addr
		}
		if err := e.cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rec := metrics.New()
		if addr := e.cfg.Training.MetricsAddr; addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", rec.Handler())
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					e.log.Error("metrics listener", "error", err)
				}
			}()
			defer srv.Shutdown(context.Background())
			e.log.Info("serving metrics", "addr", addr)
		}

		cohortID, _ := cmd.Flags().GetString("cohort")
		resume, _ := cmd.Flags().GetBool("resume")
		start := time.Now()
		res, err := orchestrator.New(e.cfg, e.tables, e.store, e.cohorts, rec, e.log).
			Run(ctx, orchestrator.RunOptions{CohortID: cohortID, Resume: resume})

		fmt.Printf("run %s on cohort %s\n", res.RunID, res.CohortID)
		fmt.Printf("  updates:     %s (%d target syncs) in %s\n",
			humanize.Comma(int64(res.Updates)), res.Syncs, time.Since(start).Round(time.Millisecond))
		fmt.Printf("  checkpoints: %d committed, %d rejected, active %s\n", res.Commits, res.Rejects, res.ActiveVersion)
		fmt.Printf("  last loss:   total %.4f (imitation %.4f, td %.4f, conservative %.4f)\n",
			res.FinalLoss.Total, res.FinalLoss.Imitation, res.FinalLoss.TD, res.FinalLoss.Conservative)
		if res.Eval != nil {
			status := "PASS"
			if !res.Eval.Passed {
				status = "FAIL"
			}
			fmt.Printf("  held-out:    %s (%s)\n", status, res.Eval.Reason)
			for _, m := range res.Eval.Metrics {
				fmt.Printf("    %-20s %.4f\n", m.Name, m.Value)
			}
		}
		return err
	},
}

func init() {
	trainCmd.Flags().String("cohort", "", "stored cohort ID (generates a new cohort when empty)")
	trainCmd.Flags().Bool("resume", false, "continue from the active checkpoint")
	trainCmd.Flags().Int("iterations", 0, "optimizer updates (overrides config)")
	trainCmd.Flags().String("variant", "", "v1 (independent values) or v2 (joint values)")
	trainCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while training")
	rootCmd.AddCommand(trainCmd)
}
