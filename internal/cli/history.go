package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/citriage/citriage/internal/db"
)

var (
	historyPR    int
	historyLimit int
	historyStats bool
)

var historyCmd = &cobra.Command{
	Use:   "history [pr]",
	Short: "Show past triage runs from the audit database",
	Long: `Without arguments, lists recent triage runs. With a PR number, shows the
stored findings and actions of that PR's most recent run. --stats prints
aggregate verdict and finding-kind counts instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := db.DefaultDBPath()
		if err != nil {
			return err
		}
		audit, err := db.Open(path)
		if err != nil {
			return fmt.Errorf("open audit database: %w", err)
		}
		defer audit.Close()
		if err := audit.Migrate(); err != nil {
			return err
		}

		w := cmd.OutOrStdout()

		if historyStats {
			stats, err := audit.QueryStats()
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Total runs: %d\n\n", stats.TotalRuns)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERDICT\tRUNS")
			for _, verdict := range sortedKeys(stats.VerdictCounts) {
				fmt.Fprintf(tw, "%s\t%d\n", verdict, stats.VerdictCounts[verdict])
			}
			tw.Flush()
			fmt.Fprintln(w)
			tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FINDING KIND\tCOUNT")
			for _, kind := range sortedKeys(stats.KindCounts) {
				fmt.Fprintf(tw, "%s\t%d\n", kind, stats.KindCounts[kind])
			}
			tw.Flush()
			return nil
		}

		if len(args) == 1 {
			pr, err := strconv.Atoi(args[0])
			if err != nil || pr <= 0 {
				return fmt.Errorf("invalid PR number %q: must be a positive integer", args[0])
			}
			return printPRDetail(w, audit, pr)
		}

		rows, err := audit.ListRuns(historyPR, historyLimit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(w, "no triage runs recorded")
			return nil
		}

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "WHEN\tPR\tRUN\tVERDICT\tMODE\tFILES\tLINES\tPR URL")
		for _, r := range rows {
			mode := r.Mode
			if r.DryRun {
				mode += " (dry)"
			}
			fmt.Fprintf(tw, "%s\t#%d\t%d\t%s\t%s\t%d\t%d\t%s\n",
				r.CreatedAt, r.PR, r.RunID, r.Verdict, mode, r.FileCount, r.LineCount, r.PRURL)
		}
		return tw.Flush()
	},
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// printPRDetail shows the most recent recorded run for a PR with its
// findings and actions.
func printPRDetail(w io.Writer, audit *db.DB, pr int) error {
	rows, err := audit.ListRuns(pr, 1)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(w, "no triage runs recorded for PR #%d\n", pr)
		return nil
	}
	r := rows[0]

	fmt.Fprintf(w, "PR:       #%d (%s)\n", r.PR, r.Repo)
	fmt.Fprintf(w, "Run:      %d\n", r.RunID)
	fmt.Fprintf(w, "When:     %s\n", r.CreatedAt)
	fmt.Fprintf(w, "Verdict:  %s\n", r.Verdict)
	if r.Branch != "" {
		fmt.Fprintf(w, "Branch:   %s\n", r.Branch)
	}
	if r.PRURL != "" {
		fmt.Fprintf(w, "PR URL:   %s\n", r.PRURL)
	}

	findings, err := audit.RunFindings(r.ID)
	if err != nil {
		return err
	}
	if len(findings) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CONF\tKIND\tSUMMARY")
		for _, f := range findings {
			fmt.Fprintf(tw, "%d/5\t%s\t%s\n", f.Confidence, f.Kind, f.Summary)
		}
		tw.Flush()
	}

	actions, err := audit.RunActions(r.ID)
	if err != nil {
		return err
	}
	if len(actions) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STATUS\tFILE\tDESCRIPTION")
		for _, a := range actions {
			status := "applied"
			if !a.Applied {
				status = "skipped"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", status, a.TargetFile, a.Description)
		}
		tw.Flush()
	}
	return nil
}

func init() {
	historyCmd.Flags().IntVar(&historyPR, "pr", 0, "only show runs for this PR")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum rows to show")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "show aggregate verdict and finding-kind counts")
}
