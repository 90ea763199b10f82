package cli

import (
	"fmt"

	"github.com/guiyumin/mediagrab/internal/core/config"
	"github.com/spf13/cobra"
)

var initDefaults bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create mediagrab config file",
	Long: `Create the config file with an interactive wizard.
An existing config is loaded as the starting point.

Examples:
  mediagrab init              # interactive
  mediagrab init --defaults   # write defaults without prompting`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			cfg = config.DefaultConfig()
		}

		if !initDefaults {
			cfg, err = config.RunInitWizard(cfg)
			if err != nil {
				return err
			}
		}

		path, err := saveConfig(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("\nSaved %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "write the default config without the wizard")
	rootCmd.AddCommand(initCmd)
}
