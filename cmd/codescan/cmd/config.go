package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/codescan/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging defaults, the config file,
CODESCAN_* environment variables and flags. The output is valid
codescan.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if paths, _ := cmd.Flags().GetBool("paths"); paths {
			used := config.NewLoader().ConfigFileUsed()
			if used == "" {
				used = "(none)"
			}
			fmt.Fprintf(out, "Config file: %s\n", used)
			fmt.Fprintf(out, "Search paths: %v\n", config.SearchPaths())
			fmt.Fprintf(out, "Environment prefix: %s_\n", config.EnvPrefix)
			return nil
		}

		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(globalConfig); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	configCmd.Flags().Bool("paths", false, "print where configuration is read from")
}
