package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/citriage/citriage/internal/triage"
)

var reportCmd = &cobra.Command{
	Use:   "report <pr>",
	Short: "Print the most recent triage report stored for a pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pr, err := strconv.Atoi(args[0])
		if err != nil || pr <= 0 {
			return fmt.Errorf("invalid PR number %q: must be a positive integer", args[0])
		}

		store, err := triage.DefaultStore()
		if err != nil {
			return err
		}
		text, err := store.LatestReport(pr)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}
