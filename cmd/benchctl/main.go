package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"justicebench/internal/batch"
	"justicebench/internal/benchclient"
	"justicebench/internal/cases"
	"justicebench/internal/evaluation"
	"justicebench/internal/workflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var baseURL string

	root := &cobra.Command{
		Use:           "benchctl",
		Short:         "Drive the justicebench API from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "server", envOr("JB_SERVER", "http://localhost:8080"), "API base URL")

	root.AddCommand(newCasesCmd(&baseURL))
	root.AddCommand(newBatchCmd(&baseURL))
	root.AddCommand(newResultsCmd(&baseURL))
	root.AddCommand(newSessionCmd(&baseURL))
	return root
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func newCasesCmd(baseURL *string) *cobra.Command {
	root := &cobra.Command{Use: "cases", Short: "Manage stored cases"}

	var in cases.CreateInput
	var textFile string
	add := &cobra.Command{
		Use:   "add",
		Short: "Store a case for batch analysis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if textFile != "" {
				raw, err := os.ReadFile(textFile)
				if err != nil {
					return err
				}
				in.Text = string(raw)
			}
			c, err := benchclient.New(*baseURL, nil).CreateCase(cmd.Context(), in)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", c.ID, c.Title)
			return nil
		},
	}
	add.Flags().StringVar(&in.Title, "title", "", "case title")
	add.Flags().StringVar(&textFile, "text-file", "", "file holding the case facts")
	add.Flags().StringVar(&in.JudgeDecision, "decision", "", "reference judge decision")
	add.Flags().StringVar(&in.DecidedOn, "decided-on", "", "decision date (YYYY-MM-DD)")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("text-file")

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored cases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := benchclient.New(*baseURL, nil).ListCases(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no cases")
				return nil
			}
			for _, c := range items {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.ID, c.Title)
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "page size")
	list.Flags().IntVar(&offset, "offset", 0, "page offset")

	var question string
	analyze := &cobra.Command{
		Use:   "analyze <case-id>",
		Short: "Analyze one case and add it to the results history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := benchclient.New(*baseURL, nil).AnalyzeCase(cmd.Context(), args[0], question)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s\t%s\n%s\n", entry.ItemID, entry.Title, entry.Decision)
			if entry.Comparison != "" {
				_, _ = fmt.Fprintf(out, "comparison: %s\n", entry.Comparison)
			}
			printSimilarity(out, entry.ItemResult)
			return nil
		},
	}
	analyze.Flags().StringVar(&question, "question", "", "question to focus the analysis on")

	var count int
	questions := &cobra.Command{
		Use:   "questions <case-id>...",
		Short: "Generate test questions for stored cases",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := benchclient.New(*baseURL, nil).GenerateQuestionsBatch(cmd.Context(), args, count)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, q := range res.Questions {
				_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", q.CaseID, q.CaseTitle, q.Question)
			}
			for _, id := range res.Skipped {
				_, _ = fmt.Fprintf(out, "skipped case %s\n", id)
			}
			for _, f := range res.Failed {
				_, _ = fmt.Fprintf(out, "%s\t%s\terror: %s\n", f.CaseID, f.CaseTitle, f.Message)
			}
			_, _ = fmt.Fprintf(out, "%d questions from %d cases\n", len(res.Questions), res.TotalCases)
			return nil
		},
	}
	questions.Flags().IntVar(&count, "count", 0, "questions per case (server maximum when 0)")

	root.AddCommand(add, list, analyze, questions)
	return root
}

func newResultsCmd(baseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "Show the analysis results history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := benchclient.New(*baseURL, nil).ListResults(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(out, "no results")
				return nil
			}
			for _, e := range entries {
				source := e.TaskID
				if source == "" {
					source = "single"
				}
				_, _ = fmt.Fprintf(out, "%s\t%s\t%s\t", e.AnalyzedAt.Format(time.DateTime), source, e.Title)
				printSimilarity(out, e.ItemResult)
			}
			return nil
		},
	}
}

func newBatchCmd(baseURL *string) *cobra.Command {
	root := &cobra.Command{Use: "batch", Short: "Run batch analyses"}

	var question string
	var interval time.Duration
	run := &cobra.Command{
		Use:   "run <case-id>...",
		Short: "Submit cases and poll until the batch finishes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := benchclient.New(*baseURL, nil)
			sub, err := client.SubmitBatch(cmd.Context(), args, question)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "task %s accepted (%d items)\n", sub.TaskID, sub.Total)
			for _, id := range sub.Skipped {
				_, _ = fmt.Fprintf(out, "skipped unknown case %s\n", id)
			}

			poller := benchclient.NewPoller(client)
			poller.Interval = interval
			poll := poller.Start(sub.TaskID, func(s batch.Snapshot) {
				_, _ = fmt.Fprintf(out, "%3d%% %d/%d ok=%d failed=%d\n", s.Percentage, s.Completed, s.Total, s.Success, s.Failed)
			})
			snap, err := poll.Wait(cmd.Context())
			if err != nil {
				poller.Stop()
				return err
			}
			printBatch(out, snap)
			if snap.Status == batch.StatusFailed {
				return fmt.Errorf("batch failed: %s", snap.Error)
			}
			return nil
		},
	}
	run.Flags().StringVar(&question, "question", "", "question asked for every case")
	run.Flags().DurationVar(&interval, "interval", benchclient.DefaultPollInterval, "progress poll interval")

	root.AddCommand(run)
	return root
}

func printBatch(w io.Writer, snap batch.Snapshot) {
	for _, r := range snap.Results {
		_, _ = fmt.Fprintf(w, "%s\t%s\t", r.ItemID, r.Title)
		printSimilarity(w, r)
	}
	for _, e := range snap.Errors {
		_, _ = fmt.Fprintf(w, "%s\t%s\terror: %s\n", e.ItemID, e.ItemTitle, e.Message)
	}
}

func printSimilarity(w io.Writer, r batch.ItemResult) {
	sim := r.Similarity
	if !sim.HasReference {
		_, _ = fmt.Fprintln(w, "no reference decision")
		return
	}
	_, _ = fmt.Fprintf(w, "overall=%.2f keyword=%.2f result=%.2f basis=%.2f reasoning=%.2f\n",
		sim.Overall, sim.Keyword, sim.Result, sim.LegalBasis, sim.Reasoning)
}

func newSessionCmd(baseURL *string) *cobra.Command {
	root := &cobra.Command{Use: "session", Short: "Run the four-step evaluation workflow"}

	var (
		maskMode  string
		model     string
		reference string
		questions []string
		keep      bool
	)
	run := &cobra.Command{
		Use:   "run <file>",
		Short: "Upload a judgment and walk it through masking, questions, answers and evaluation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			orch := workflow.NewOrchestrator(benchclient.New(*baseURL, nil))
			orch.Model = model
			orch.OnItemStatus = func(step workflow.Step, index int, status workflow.ItemStatus) {
				_, _ = fmt.Fprintf(out, "[%s] #%d %s\n", step, index+1, status)
			}
			if !keep {
				defer orch.Discard(context.WithoutCancel(ctx))
			}

			if err := orch.Upload(ctx, workflow.Upload{FileName: filepath.Base(args[0]), Data: data}); err != nil {
				return err
			}
			if _, err := orch.Mask(ctx, maskMode); err != nil {
				return err
			}
			if err := orch.AdvanceToQuestions(ctx); err != nil {
				return err
			}
			if len(questions) > 0 {
				if err := replaceQuestions(ctx, orch, questions); err != nil {
					return err
				}
			}
			for i, q := range orch.State().Questions {
				_, _ = fmt.Fprintf(out, "Q%d: %s\n", i+1, q)
			}

			res, err := orch.AdvanceToAnswers(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "answers: %d ok, %d failed\n", res.Succeeded, res.Failed)

			summary, err := orch.AdvanceToEvaluation(ctx, reference)
			if err != nil {
				return err
			}
			printSummary(out, summary)
			return nil
		},
	}
	run.Flags().StringVar(&maskMode, "mask", "fast", "masking mode: fast|review")
	run.Flags().StringVar(&model, "model", "", "model used for answers (server default when empty)")
	run.Flags().StringVar(&reference, "reference", "", "reference answer given to the evaluator")
	run.Flags().StringArrayVar(&questions, "question", nil, "replace generated questions (repeatable)")
	run.Flags().BoolVar(&keep, "keep", false, "keep the server-side session after the run")

	root.AddCommand(run)
	return root
}

func replaceQuestions(ctx context.Context, orch *workflow.Orchestrator, questions []string) error {
	for range orch.State().Questions {
		if err := orch.DeleteQuestion(ctx, 0); err != nil {
			return err
		}
	}
	for _, q := range questions {
		if err := orch.AddQuestion(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, s evaluation.Summary) {
	_, _ = fmt.Fprintf(w, "evaluated %d answers\n", s.Count)
	for _, d := range evaluation.Dimensions {
		_, _ = fmt.Fprintf(w, "  %-20s %s\n", d, evaluation.FormatScore(s.DimensionMeans[d]))
	}
	_, _ = fmt.Fprintf(w, "  %-20s %s\n", "total", evaluation.FormatScore(s.MeanTotal))
	_, _ = fmt.Fprintf(w, "  errors major=%d obvious=%d minor=%d abandoned=%d\n",
		s.Errors.Major, s.Errors.Obvious, s.Errors.Minor, s.Errors.AbandonedCitations)
	_, _ = fmt.Fprintf(w, "  grade: %s\n", s.Grade)
}
