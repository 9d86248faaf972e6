package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/citriage/citriage/internal/config"
	"github.com/citriage/citriage/internal/triage"
)

var (
	runRepo     string
	runWorkflow string
	runMode     string
	runOverride bool
	runDryRun   bool
	runDir      string
)

var runCmd = &cobra.Command{
	Use:   "run <pr>",
	Short: "Triage the failed CI run for a pull request",
	Long: `Resolves the most relevant failed workflow run for the PR, classifies the
failure from its logs, and—unless --mode=triage-only—applies planned fixes
on a new branch and opens a pull request for human review.

A guardrail abort (secrets detected, or limits exceeded without override)
exits zero: stopping safely is a successful outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pr, err := strconv.Atoi(args[0])
		if err != nil || pr <= 0 {
			return fmt.Errorf("invalid PR number %q: must be a positive integer", args[0])
		}

		mode := triage.Mode(runMode)
		if mode != triage.ModeTriageOnly && mode != triage.ModeApplyFixes {
			return fmt.Errorf("invalid mode %q: must be %s or %s", runMode, triage.ModeTriageOnly, triage.ModeApplyFixes)
		}

		// Arguments are valid from here on; pipeline failures should not
		// dump usage text.
		cmd.SilenceUsage = true

		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.ApplyEnv(ctx, cfg); err != nil {
			return err
		}
		if runWorkflow != "" {
			cfg.Workflow = runWorkflow
		}
		repo := runRepo
		if repo == "" {
			repo = cfg.Repo
		}
		if repo == "" {
			return fmt.Errorf("no repository: pass --repo owner/name or set repo in citriage.yaml")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		dir := runDir
		if dir == "" {
			if dir, err = os.Getwd(); err != nil {
				return err
			}
		}

		opts := triage.Options{
			Repo:     repo,
			PR:       pr,
			Mode:     mode,
			Override: runOverride,
			DryRun:   runDryRun,
			Dir:      dir,
		}
		runner, err := triage.Setup(ctx, cfg, opts)
		if err != nil {
			return err
		}
		defer runner.Close()

		rep, err := runner.Run(ctx, opts)
		if rep != nil {
			text, rerr := rep.RenderText()
			if rerr == nil {
				fmt.Fprint(cmd.OutOrStdout(), text)
			}
		}
		return err
	},
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadDefault(".")
}

func init() {
	runCmd.Flags().StringVar(&runRepo, "repo", "", "repository as owner/name (overrides config)")
	runCmd.Flags().StringVar(&runWorkflow, "workflow", "", "workflow file to target (overrides config)")
	runCmd.Flags().StringVar(&runMode, "mode", string(triage.ModeApplyFixes), "triage-only or apply-fixes")
	runCmd.Flags().BoolVar(&runOverride, "override", false, "lift the file/line limits (secret detection still aborts)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "plan and validate fixes without touching files")
	runCmd.Flags().StringVar(&runDir, "dir", "", "working tree to apply fixes in (default: current directory)")
}
