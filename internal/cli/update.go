package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/guiyumin/mediagrab/internal/core/updater"
	"github.com/spf13/cobra"
)

var updateCheckOnly bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update mediagrab to the latest release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := updater.Check(cmd.Context())
		if err != nil {
			return err
		}
		if !st.Available {
			fmt.Printf("Already up to date (v%s)\n", st.Current)
			return nil
		}

		yellow := color.New(color.FgYellow)
		yellow.Printf("New version available: v%s -> v%s\n", st.Current, st.Latest)
		if updateCheckOnly {
			return nil
		}

		if err := updater.Apply(cmd.Context(), st); err != nil {
			return err
		}
		color.New(color.FgGreen).Printf("Successfully updated to v%s\n", st.Latest)
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateCheckOnly, "check", false, "only report whether an update exists")
	rootCmd.AddCommand(updateCmd)
}
