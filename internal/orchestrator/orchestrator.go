// Package orchestrator runs the offline training experiment end to end:
// cohort, dataset, gated checkpoints, and held-out evaluation.
package orchestrator

// #region imports
import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/trust-aht/internal/agent"
	"github.com/danielpatrickdp/trust-aht/internal/cohort"
	"github.com/danielpatrickdp/trust-aht/internal/config"
	"github.com/danielpatrickdp/trust-aht/internal/dataset"
	"github.com/danielpatrickdp/trust-aht/internal/eval"
	"github.com/danielpatrickdp/trust-aht/internal/gate"
	"github.com/danielpatrickdp/trust-aht/internal/generator"
	"github.com/danielpatrickdp/trust-aht/internal/logging"
	"github.com/danielpatrickdp/trust-aht/internal/metrics"
	"github.com/danielpatrickdp/trust-aht/internal/store"
	"github.com/danielpatrickdp/trust-aht/internal/tables"
	"github.com/danielpatrickdp/trust-aht/internal/vectorize"
)

// #endregion

// #region orchestrator-struct

// Orchestrator wires the generator, agent, gate, store and metrics into
// one training run.
type Orchestrator struct {
	cfg     config.Config
	tables  *tables.Tables
	store   *store.Store
	cohorts *cohort.DB
	metrics *metrics.Recorder
	gate    *gate.Gate
	harness *eval.EvalHarness
	log     *slog.Logger
}

// #endregion

// #region constructor

// New creates a fully wired orchestrator. A nil logger discards output.
func New(cfg config.Config, tb *tables.Tables, st *store.Store, cohorts *cohort.DB, rec *metrics.Recorder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:     cfg,
		tables:  tb,
		store:   st,
		cohorts: cohorts,
		metrics: rec,
		gate:    gate.NewGate(cfg.Gate),
		harness: eval.NewEvalHarness(cfg.Eval),
		log:     logger,
	}
}

// #endregion

// #region generate

// Generate samples a cohort with the configured seed, size and horizon and
// stores it.
func (o *Orchestrator) Generate() (cohort.Cohort, []generator.Step, error) {
	g := o.cfg.Generator
	start := time.Now()
	seq, err := generator.NewSampler(o.tables, g.Seed).Generate(g.CohortSize, g.Horizon)
	if err != nil {
		return cohort.Cohort{}, nil, fmt.Errorf("generate cohort: %w", err)
	}
	c, err := o.cohorts.Save(g.Seed, seq)
	if err != nil {
		return cohort.Cohort{}, nil, fmt.Errorf("save cohort: %w", err)
	}
	o.log.Info("cohort generated", "cohort", c.CohortID, "size", c.Size, "horizon", c.Horizon,
		"digest", c.Digest, "elapsed", time.Since(start))
	return c, seq, nil
}

// #endregion

// #region run

// Run trains an agent on a cohort. Every CheckpointEvery updates the gate
// decides whether the current weights become the active checkpoint; each
// decision is written to the training log. A non-finite loss ends the run
// with agent.ErrNonFiniteLoss after logging an abort row.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (Result, error) {
	var (
		c   cohort.Cohort
		seq []generator.Step
		err error
	)
	if opts.CohortID == "" {
		c, seq, err = o.Generate()
	} else {
		c, seq, err = o.cohorts.Load(opts.CohortID)
	}
	if err != nil {
		return Result{}, err
	}

	train, held, err := o.datasets(seq)
	if err != nil {
		return Result{}, err
	}

	a, err := agent.New(o.cfg.Agent, agent.DefaultDims())
	if err != nil {
		return Result{}, fmt.Errorf("new agent: %w", err)
	}
	t := newTracker()
	if opts.Resume {
		if err := o.resume(a, t); err != nil {
			return Result{}, err
		}
	}

	cfgJSON, err := json.Marshal(o.cfg)
	if err != nil {
		return Result{}, fmt.Errorf("marshal config: %w", err)
	}
	run, err := o.store.CreateRun(string(o.cfg.Agent.Variant), string(cfgJSON), c.CohortID)
	if err != nil {
		return Result{}, fmt.Errorf("create run: %w", err)
	}
	res := Result{RunID: run.RunID, CohortID: c.CohortID}
	o.log.Info("run started", "run", run.RunID, "variant", o.cfg.Agent.Variant,
		"iterations", o.cfg.Training.Iterations, "batch", o.cfg.Training.BatchSize, "resume_from", a.Updates())

	rng := rand.New(rand.NewPCG(o.cfg.Training.SampleSeed, o.cfg.Training.SampleSeed^0x9e3779b97f4a7c15))
	var last agent.Losses
	for i := 0; i < o.cfg.Training.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return o.finish(res, a, t, last), fmt.Errorf("run interrupted at update %d: %w", a.Updates(), err)
		}
		b, err := train.SampleBatch(rng, o.cfg.Training.BatchSize)
		if err != nil {
			return o.finish(res, a, t, last), fmt.Errorf("sample batch: %w", err)
		}

		start := time.Now()
		losses, err := a.Train(b)
		if errors.Is(err, agent.ErrNonFiniteLoss) {
			o.log.Error("non-finite loss, aborting run", "update", a.Updates()+1, "loss", losses.Total, "error", err)
			o.logAbort(run.RunID, a.Updates()+1, losses, t)
			return o.finish(res, a, t, last), err
		}
		if err != nil {
			return o.finish(res, a, t, last), fmt.Errorf("train: %w", err)
		}
		if o.metrics != nil {
			o.metrics.Observe(losses, time.Since(start))
		}
		last = losses
		if losses.Synced {
			t.syncs++
		}

		if a.Updates()%o.cfg.Training.CheckpointEvery == 0 {
			if err := o.checkpoint(run.RunID, a, losses, t); err != nil {
				return o.finish(res, a, t, last), err
			}
		}
	}
	if o.cfg.Training.Iterations > 0 && a.Updates()%o.cfg.Training.CheckpointEvery != 0 {
		if err := o.checkpoint(run.RunID, a, last, t); err != nil {
			return o.finish(res, a, t, last), err
		}
	}

	res = o.finish(res, a, t, last)
	if held != nil {
		er, err := o.harness.Run(a, held)
		if err != nil {
			return res, fmt.Errorf("held-out eval: %w", err)
		}
		res.Eval = &er
		o.log.Info("held-out eval", "passed", er.Passed, "reason", er.Reason)
		for _, m := range er.Metrics {
			o.log.Debug("eval metric", "name", m.Name, "value", m.Value, "pass", m.Pass)
		}
	}
	o.log.Info("run finished", "run", run.RunID, "updates", res.Updates, "commits", res.Commits,
		"rejects", res.Rejects, "active", res.ActiveVersion)
	return res, nil
}

// #endregion

// #region datasets

// datasets strips latents and splits the cohort into training and held-out
// datasets. The last HoldOut fraction of individuals is held out.
func (o *Orchestrator) datasets(seq []generator.Step) (*dataset.Dataset, *dataset.Dataset, error) {
	obs := generator.StripLatents(seq)
	n := obs[0].Size()
	k := config.HeldOut(n, o.cfg.Training.HoldOut)

	train, err := build(split(obs, 0, n-k))
	if err != nil {
		return nil, nil, fmt.Errorf("training dataset: %w", err)
	}
	if k == 0 {
		return train, nil, nil
	}
	held, err := build(split(obs, n-k, n))
	if err != nil {
		return nil, nil, fmt.Errorf("held-out dataset: %w", err)
	}
	return train, held, nil
}

func split(obs []generator.Observed, lo, hi int) []generator.Observed {
	out := make([]generator.Observed, len(obs))
	for t, st := range obs {
		out[t] = generator.Observed{
			Case:     st.Case[lo:hi],
			Advice:   st.Advice[lo:hi],
			Decision: st.Decision[lo:hi],
			Outcome:  st.Outcome[lo:hi],
			Cont:     st.Cont[lo:hi],
		}
	}
	return out
}

func build(obs []generator.Observed) (*dataset.Dataset, error) {
	ts, err := vectorize.Vectorize(obs)
	if err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}
	return dataset.Build(ts)
}

// #endregion

// #region checkpoint

// tracker remembers the last committed checkpoint for delta and loss-rise
// checks.
type tracker struct {
	version string
	weights map[string]*mat.Dense
	loss    float64
	commits int
	rejects int
	syncs   int
}

func newTracker() *tracker { return &tracker{} }

func (o *Orchestrator) resume(a *agent.Agent, t *tracker) error {
	cur, err := o.store.GetCurrent()
	if err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	if cur.Variant != string(o.cfg.Agent.Variant) {
		return fmt.Errorf("resume %s checkpoint with %s agent: %w", cur.Variant, o.cfg.Agent.Variant, agent.ErrConfig)
	}
	if err := a.Restore(cur.Weights, cur.UpdateStep); err != nil {
		return fmt.Errorf("resume: %w", err)
	}
	t.version = cur.VersionID
	t.weights = cur.Weights
	o.log.Info("resumed", "version", cur.VersionID, "update", cur.UpdateStep)
	return nil
}

func (o *Orchestrator) checkpoint(runID string, a *agent.Agent, losses agent.Losses, t *tracker) error {
	weights := a.Weights()
	decision := o.gate.Evaluate(gate.Proposal{
		Old:      t.weights,
		New:      weights,
		Losses:   losses,
		PrevLoss: t.loss,
	})
	record := o.record(runID, a.Updates(), losses, decision)

	if decision.Action != "commit" {
		t.rejects++
		if o.metrics != nil {
			o.metrics.Rejected()
		}
		o.log.Warn("checkpoint rejected", "update", a.Updates(), "reason", decision.Reason)
		return o.logStep(runID, t.version, a.Updates(), record, decision)
	}

	cp, err := o.store.CommitCheckpoint(store.Checkpoint{
		ParentID:    t.version,
		RunID:       runID,
		UpdateStep:  a.Updates(),
		Variant:     string(a.Config().Variant),
		Weights:     weights,
		MetricsJSON: record,
	})
	if err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	t.version = cp.VersionID
	t.weights = weights
	t.loss = losses.Total
	t.commits++
	o.log.Info("checkpoint committed", "version", cp.VersionID, "update", a.Updates(),
		"loss", losses.Total, "soft_score", decision.SoftScore)
	return o.logStep(runID, cp.VersionID, a.Updates(), record, decision)
}

func (o *Orchestrator) record(runID string, update int, losses agent.Losses, d gate.GateDecision) string {
	g := o.gate.Config()
	rec := logging.StepRecord{
		RunID:  runID,
		Update: update,
		Losses: logging.StepLosses{
			Imitation:    losses.Imitation,
			TD:           losses.TD,
			Conservative: losses.Conservative,
			Total:        losses.Total,
		},
		Synced:    losses.Synced,
		ParamNorm: d.ParamNorm,
		DeltaNorm: d.DeltaNorm,
		Thresholds: logging.StepThresholds{
			MaxParamNorm: g.MaxParamNorm,
			MaxDeltaNorm: g.MaxDeltaNorm,
			MaxLossRise:  g.MaxLossRise,
		},
		GateAction:    d.Action,
		GateSoftScore: d.SoftScore,
		GateVetoed:    d.Vetoed,
		GateReason:    d.Reason,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		// NaN losses cannot be encoded; keep the row with what is known
		o.log.Warn("marshal step record", "error", err)
		return ""
	}
	return string(data)
}

func (o *Orchestrator) logStep(runID, version string, update int, record string, d gate.GateDecision) error {
	if err := logging.LogStep(o.store.DB(), logging.StepEntry{
		VersionID:  version,
		RunID:      runID,
		UpdateStep: update,
		RecordJSON: record,
		Decision:   d.Action,
		Reason:     d.Reason,
	}); err != nil {
		return fmt.Errorf("log step: %w", err)
	}
	return nil
}

func (o *Orchestrator) logAbort(runID string, update int, losses agent.Losses, t *tracker) {
	d := gate.GateDecision{
		Action: "abort",
		Reason: fmt.Sprintf("non-finite loss %v", losses.Total),
	}
	if err := o.logStep(runID, t.version, update, "", d); err != nil {
		o.log.Error("log abort", "error", err)
	}
}

func (o *Orchestrator) finish(res Result, a *agent.Agent, t *tracker, last agent.Losses) Result {
	res.Updates = a.Updates()
	res.Syncs = t.syncs
	res.Commits = t.commits
	res.Rejects = t.rejects
	res.ActiveVersion = t.version
	res.FinalLoss = last
	return res
}

// #endregion
