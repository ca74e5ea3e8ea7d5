package pipeline

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/persist"
)

type BatchItem struct {
	Scenario Scenario `json:"scenario"`
	Outcome  *Outcome `json:"outcome,omitempty"`
	Err      error    `json:"-"`
}

type BatchReport struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// RunBatch runs every scenario and reports each result in input order. A
// failing scenario does not stop the rest. Concurrency 1 runs them in order.
// A scenario whose file key repeats an earlier one fails without running.
func (p *Pipeline) RunBatch(ctx context.Context, scenarios []Scenario) BatchReport {
	items := make([]BatchItem, len(scenarios))
	clash := keyClashes(scenarios)
	runOne := func(i int) {
		sc := scenarios[i]
		items[i].Scenario = sc
		if err := clash[i]; err != nil {
			items[i].Err = err
			return
		}
		if err := ctx.Err(); err != nil {
			items[i].Err = err
			return
		}
		out, err := p.Run(ctx, sc)
		if err != nil {
			items[i].Err = err
			return
		}
		items[i].Outcome = &out
	}

	if p.opts.Concurrency <= 1 {
		for i := range scenarios {
			runOne(i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(p.opts.Concurrency)
		for i := range scenarios {
			g.Go(func() error {
				runOne(i)
				return nil
			})
		}
		_ = g.Wait()
	}

	report := BatchReport{Items: items}
	for _, it := range items {
		if it.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	p.log.Info("Batch finished",
		"scenarios", len(scenarios),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)
	return report
}

func keyClashes(scenarios []Scenario) map[int]error {
	out := map[int]error{}
	first := make(map[string]int, len(scenarios))
	for i, sc := range scenarios {
		key, err := persist.NameKey(sc.Name)
		if err != nil {
			continue
		}
		if j, ok := first[key]; ok {
			out[i] = &StepError{
				Step:     "validate",
				Scenario: strings.TrimSpace(sc.Name),
				Err:      fmt.Errorf("file name %q already used by %q", key, strings.TrimSpace(scenarios[j].Name)),
			}
			continue
		}
		first[key] = i
	}
	return out
}
