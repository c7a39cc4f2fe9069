package cli

import (
	"github.com/spf13/cobra"

	"github.com/sbctool/sbctool/internal/config"
)

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration sbctool would use, as YAML.

Defaults, the config file and SBCTOOL_* environment overrides are merged,
so the output is a valid starting point for ~/.config/sbctool/config.yaml.

Examples:
  sbctool config
  sbctool config --config ./board.yaml
  SBCTOOL_SSH_MODE=exec sbctool config`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for sbctool. SSH targets complete
from the aliases in ~/.ssh/config.

Examples:
  # Bash
  sbctool completion bash > /etc/bash_completion.d/sbctool

  # Zsh
  sbctool completion zsh > "${fpath[1]}/_sbctool"

  # Fish
  sbctool completion fish > ~/.config/fish/completions/sbctool.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(w)
		case "zsh":
			return rootCmd.GenZshCompletion(w)
		case "fish":
			return rootCmd.GenFishCompletion(w, true)
		default:
			return rootCmd.GenPowerShellCompletion(w)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(completionCmd)
}
