package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbctool/sbctool/internal/logger"
	"github.com/sbctool/sbctool/internal/transport"
	"github.com/sbctool/sbctool/pkg/sshutil"
)

// dialSSH is swapped in tests.
var dialSSH = transport.DialSSH

// sshCmd opens the dashboard for a board reached over SSH
var sshCmd = &cobra.Command{
	Use:   "ssh <user@host|alias>",
	Short: "Monitor a board over SSH",
	Long: `Connect to a board over SSH and open the live dashboard.

Examples:
  sbctool ssh user@192.168.1.4
  sbctool ssh khadas

Notes:
  - Aliases are resolved using 'ssh -G' when available; falls back to
    ~/.ssh/config and /etc/ssh/ssh_config.
  - If user is omitted, tries ssh config, then $USER/LOGNAME.
  - Without a target, pick a host from ~/.ssh/config interactively.`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeSSHHosts,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 && isHelpArg(args[0]) {
			return cmd.Help()
		}

		spec := ""
		if len(args) == 1 {
			spec = args[0]
		}
		return sshCommand(cmd.Context(), spec)
	},
}

func init() {
	rootCmd.AddCommand(sshCmd)
}

// sshCommand resolves spec, connects and runs the dashboard.
func sshCommand(ctx context.Context, spec string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if spec == "" {
		if spec, err = pickSSHHost(); err != nil {
			return err
		}
	}

	resolver := transport.SSHResolver(spec, sshutil.NewResolver(cfg.SSH.ResolveWithSSHG))
	greeting := fmt.Sprintf("Connecting to %s via SSH", spec)

	session, err := connect(greeting, func(pause func()) (transport.Session, error) {
		return dialSSH(ctx, resolver, cfg.SSH, transport.SSHOptions{
			Password: passwordPrompt(pause),
			Logger:   logger.NewEnvLogger("[ssh]"),
		})
	})
	if err != nil {
		return err
	}

	return launchDashboard(ctx, session, cfg, greeting)
}

// completeSSHHosts completes the target with aliases from ~/.ssh/config.
func completeSSHHosts(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	hosts, err := sshutil.ListHosts()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	return hostCompletions(hosts), cobra.ShellCompDirectiveNoFileComp
}

func hostCompletions(hosts []sshutil.HostEntry) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, h.Completion())
	}
	return out
}
