package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/ui"
	"github.com/sbctool/sbctool/pkg/sshutil"
)

// stdinIsTerminal is swapped in tests.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// passwordPrompt asks for an SSH password once the other credentials are
// exhausted. Nil without a terminal, which ends the auth chain there.
func passwordPrompt(pause func()) sshutil.PasswordPrompt {
	if !stdinIsTerminal() {
		return nil
	}
	return func(user, host string) (string, error) {
		pause()

		var password string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(fmt.Sprintf("Password for %s@%s", user, host)).
					EchoMode(huh.EchoModePassword).
					Value(&password),
			),
		)
		if err := form.Run(); err != nil {
			return "", err
		}
		return password, nil
	}
}

// devicePicker lets the user choose among several adb server devices. Nil
// without a terminal, which makes that case an error listing the serials.
func devicePicker(pause func()) func(serials []string) (string, error) {
	if !stdinIsTerminal() {
		return nil
	}
	return func(serials []string) (string, error) {
		pause()

		var serial string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Several devices are attached. Which one?").
					Options(huh.NewOptions(serials...)...).
					Value(&serial),
			),
		)
		if err := form.Run(); err != nil {
			return "", err
		}
		return serial, nil
	}
}

// authNotice tells the user to look at the device while adbd shows its
// "Allow USB debugging?" dialog.
func authNotice(pause func()) func() {
	return func() {
		pause()
		fmt.Fprintln(os.Stderr, "Waiting for authorization. Accept the 'Allow USB debugging?' prompt on the device.")
	}
}

// pickSSHHost offers the aliases from ~/.ssh/config when no target was given.
func pickSSHHost() (string, error) {
	usage := "Usage: sbctool ssh <user@host|alias>"
	if !stdinIsTerminal() {
		return "", errors.New(errors.ErrResolve, "No SSH target given", usage)
	}

	hosts, err := sshutil.ListHosts()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't read ~/.ssh/config",
			usage)
	}
	if len(hosts) == 0 {
		return "", errors.New(errors.ErrResolve,
			"No SSH target given and no hosts in ~/.ssh/config",
			usage)
	}

	alias, err := ui.PickHost(hosts, os.Stdin, os.Stderr)
	if err != nil {
		return "", err
	}
	if alias == "" {
		return "", errors.New(errors.ErrResolve, "No host selected", usage)
	}
	return alias, nil
}
