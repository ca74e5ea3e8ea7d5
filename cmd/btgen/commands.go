package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/app"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/pipeline"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the generation HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.app(ctx, app.Options{Temporal: true})
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := a.HTTPServer()
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}

func newBatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <scenarios.json> [output_dir]",
		Short: "Generate one behavior tree per scenario in a JSON or YAML file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := pipeline.LoadScenarios(args[0])
			if err != nil {
				return err
			}
			if len(args) == 2 {
				c.cfg.UseLocalOutput(args[1])
			}

			ctx := cmd.Context()
			a, err := c.app(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			rep := a.Pipeline.RunBatch(ctx, scenarios)
			out := cmd.OutOrStdout()
			for _, it := range rep.Items {
				if it.Err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", it.Scenario.Name, it.Err)
					continue
				}
				fmt.Fprintf(out, "OK   %s (%s) %s\n", it.Scenario.Name, it.Outcome.Extract.Status, it.Outcome.Location.XML)
			}
			fmt.Fprintf(out, "%d succeeded, %d failed\n", rep.Succeeded, rep.Failed)
			if rep.Succeeded == 0 {
				return errors.New("no scenario produced a behavior tree")
			}
			return nil
		},
	}
}

func newGenerateCmd(c *cli) *cobra.Command {
	var (
		prompt string
		name   string
		topK   int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a behavior tree for a single scenario",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(prompt) == "" {
				return errors.New("--prompt is required")
			}
			ctx := cmd.Context()
			a, err := c.app(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Pipeline.Run(ctx, pipeline.Scenario{Name: name, Prompt: prompt, TopK: topK})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Extract.XML)
			fmt.Fprintf(cmd.ErrOrStderr(), "xml_status=%s xml=%s metadata=%s\n", res.Extract.Status, res.Location.XML, res.Location.Metadata)
			return nil
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "scenario description")
	cmd.Flags().StringVar(&name, "name", "cli_generation", "scenario name used in output file names")
	cmd.Flags().IntVar(&topK, "top-k", 0, "context chunks to retrieve (0 uses the configured default)")
	return cmd
}

func newIngestCmd(c *cli) *cobra.Command {
	var (
		index       string
		ensureIndex bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Chunk, embed and upsert documents into the vector index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.app(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			in, err := a.Ingestor(ctx)
			if err != nil {
				return err
			}
			if index == "" {
				index = c.cfg.Retrieval.IndexName
			}
			if ensureIndex {
				if err := in.EnsureIndex(ctx, index); err != nil {
					return fmt.Errorf("ensure index %s: %w", index, err)
				}
			}
			out := cmd.OutOrStdout()
			for _, path := range args {
				rep, err := in.Ingest(ctx, path, index)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				fmt.Fprintf(out, "%s: %d chunks in %d batches (%s)\n", rep.Source, rep.Chunks, rep.Batches, rep.Duration)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&index, "index", "", "index name (defaults to the configured index)")
	cmd.Flags().BoolVar(&ensureIndex, "ensure-index", true, "create the index when it does not exist")
	return cmd
}

func newVerifyAdapterCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "verify-adapter",
		Short: "Check that the fine-tuned adapter changes model output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.app(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			cmp, err := a.Generator.VerifyAdapter(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "With adapter (%s):\n%s\n\n", cmp.AdapterModel, cmp.WithAdapter)
			fmt.Fprintf(out, "Base model (%s):\n%s\n\n", cmp.BaseModel, cmp.BaseOnly)
			if !cmp.Differs {
				return errors.New("adapter output is identical to the base model")
			}
			fmt.Fprintln(out, "Adapter changes the output.")
			return nil
		},
	}
}

func newWorkerCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the Temporal worker for durable scenario batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.app(ctx, app.Options{Temporal: true})
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.Worker()
			if err != nil {
				return err
			}
			return w.Start(ctx)
		},
	}
}

func newRunsCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Print the most recent runs from the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.app(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Runs == nil {
				return errors.New("run ledger is disabled (RUNLOG_DRIVER)")
			}
			runs, err := a.Runs.Recent(ctx, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to print")
	return cmd
}
