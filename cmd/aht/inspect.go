package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/trust-aht/internal/logging"
	"github.com/danielpatrickdp/trust-aht/internal/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "List checkpoints, one checkpoint in detail, or stored cohorts",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		last, _ := cmd.Flags().GetInt("last")
		version, _ := cmd.Flags().GetString("version")
		cohorts, _ := cmd.Flags().GetBool("cohorts")
		jsonOut, _ := cmd.Flags().GetBool("json")

		switch {
		case cohorts:
			return runCohortList(e, last, jsonOut)
		case version != "":
			return runDetailMode(e.store, version, jsonOut)
		default:
			return runListMode(e.store, last, jsonOut)
		}
	},
}

func init() {
	inspectCmd.Flags().Int("last", 20, "show N most recent entries")
	inspectCmd.Flags().String("version", "", "show single checkpoint detail")
	inspectCmd.Flags().Bool("cohorts", false, "list stored cohorts instead of checkpoints")
	inspectCmd.Flags().Bool("json", false, "output as JSON instead of table")
	rootCmd.AddCommand(inspectCmd)
}

// #region list-mode

type listRow struct {
	VersionID string   `json:"version_id"`
	RunID     string   `json:"run_id"`
	Update    int      `json:"update"`
	Variant   string   `json:"variant"`
	Loss      *float64 `json:"loss,omitempty"`
	ParamNorm *float64 `json:"param_norm,omitempty"`
	DeltaNorm *float64 `json:"delta_norm,omitempty"`
	Decision  string   `json:"decision"`
	CreatedAt string   `json:"created_at"`
	created   time.Time
}

func runListMode(st *store.Store, last int, jsonOut bool) error {
	versions, err := st.ListVersionsWithLog(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no checkpoints found")
		return nil
	}

	// store returns DESC, reverse for chronological
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		r := listRow{
			VersionID: v.VersionID,
			RunID:     v.RunID,
			Update:    v.UpdateStep,
			Variant:   v.Variant,
			Decision:  v.Decision,
			CreatedAt: v.CreatedAt.Format(time.RFC3339),
			created:   v.CreatedAt,
		}
		if rec := parseStepRecord(v.RecordJSON); rec != nil {
			r.Loss = &rec.Losses.Total
			r.ParamNorm = &rec.ParamNorm
			r.DeltaNorm = &rec.DeltaNorm
		}
		rows[len(versions)-1-i] = r
	}

	if jsonOut {
		return printJSON(rows)
	}
	fmt.Printf("%-12s  %-8s  %10s  %-4s  %10s  %10s  %10s  %-8s  %s\n",
		"Version", "Run", "Update", "Var", "Loss", "Param", "Delta", "Decision", "Age")
	fmt.Printf("%-12s+-%-8s+-%10s+-%-4s+-%10s+-%10s+-%10s+-%-8s+-%s\n",
		"------------", "--------", "----------", "----", "----------", "----------", "----------", "--------", "------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %-8s  %10s  %-4s  %10s  %10s  %10s  %-8s  %s\n",
			short(r.VersionID, 12), short(r.RunID, 8), humanize.Comma(int64(r.Update)), r.Variant,
			optFloat(r.Loss), optFloat(r.ParamNorm), optFloat(r.DeltaNorm), r.Decision, humanize.Time(r.created))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type tensorRow struct {
	Name  string  `json:"name"`
	Shape [2]int  `json:"shape"`
	Norm  float64 `json:"norm"`
}

type detailView struct {
	VersionID  string              `json:"version_id"`
	ParentID   string              `json:"parent_id,omitempty"`
	RunID      string              `json:"run_id"`
	Update     int                 `json:"update"`
	Variant    string              `json:"variant"`
	CreatedAt  string              `json:"created_at"`
	Parameters int                 `json:"parameters"`
	Tensors    []tensorRow         `json:"tensors"`
	Record     *logging.StepRecord `json:"record,omitempty"`
}

func runDetailMode(st *store.Store, id string, jsonOut bool) error {
	cp, err := st.GetVersion(id)
	if err != nil {
		return err
	}
	view := detailView{
		VersionID: cp.VersionID,
		ParentID:  cp.ParentID,
		RunID:     cp.RunID,
		Update:    cp.UpdateStep,
		Variant:   cp.Variant,
		CreatedAt: cp.CreatedAt.Format(time.RFC3339),
		Record:    parseStepRecord(cp.MetricsJSON),
	}
	names := make([]string, 0, len(cp.Weights))
	for name := range cp.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w := cp.Weights[name]
		r, c := w.Dims()
		view.Parameters += r * c
		view.Tensors = append(view.Tensors, tensorRow{Name: name, Shape: [2]int{r, c}, Norm: mat.Norm(w, 2)})
	}

	if jsonOut {
		return printJSON(view)
	}
	fmt.Printf("Version:    %s\n", view.VersionID)
	fmt.Printf("Parent:     %s\n", orDash(view.ParentID))
	fmt.Printf("Run:        %s\n", view.RunID)
	fmt.Printf("Update:     %s\n", humanize.Comma(int64(view.Update)))
	fmt.Printf("Variant:    %s\n", view.Variant)
	fmt.Printf("Created:    %s (%s)\n", view.CreatedAt, humanize.Time(cp.CreatedAt))
	fmt.Printf("Parameters: %s\n", humanize.Comma(int64(view.Parameters)))
	if rec := view.Record; rec != nil {
		fmt.Printf("Loss:       total %.4f  imitation %.4f  td %.4f  conservative %.4f\n",
			rec.Losses.Total, rec.Losses.Imitation, rec.Losses.TD, rec.Losses.Conservative)
		fmt.Printf("Gate:       %s (soft %.4f) %s\n", rec.GateAction, rec.GateSoftScore, rec.GateReason)
	}
	fmt.Println()
	fmt.Printf("%-28s  %-9s  %10s\n", "Tensor", "Shape", "Norm")
	for _, t := range view.Tensors {
		fmt.Printf("%-28s  %-9s  %10.4f\n", t.Name, fmt.Sprintf("%dx%d", t.Shape[0], t.Shape[1]), t.Norm)
	}
	return nil
}

// #endregion detail-mode

// #region cohort-list

func runCohortList(e *env, last int, jsonOut bool) error {
	list, err := e.cohorts.List(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "no cohorts found")
		return nil
	}
	fmt.Printf("%-36s  %12s  %7s  %6s  %-16s  %s\n", "Cohort", "Individuals", "Horizon", "Seed", "Digest", "Created")
	for _, c := range list {
		fmt.Printf("%-36s  %12s  %7d  %6d  %-16s  %s\n",
			c.CohortID, humanize.Comma(int64(c.Size)), c.Horizon, c.Seed, short(c.Digest, 16), c.CreatedAt)
	}
	return nil
}

// #endregion cohort-list

// #region helpers

func parseStepRecord(s string) *logging.StepRecord {
	if s == "" {
		return nil
	}
	var rec logging.StepRecord
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return nil
	}
	return &rec
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

func short(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion helpers
