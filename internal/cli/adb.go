package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sbctool/sbctool/internal/errors"
	"github.com/sbctool/sbctool/internal/logger"
	"github.com/sbctool/sbctool/internal/transport"
)

// dialADB is swapped in tests.
var dialADB = transport.DialADB

var adbSerialFlag string

// adbCmd opens the dashboard for an Android board
var adbCmd = &cobra.Command{
	Use:   "adb [SERIAL]",
	Short: "Monitor an Android board over ADB",
	Long: `Connect to an Android board over ADB and open the live dashboard.

Examples:
  sbctool adb
  sbctool adb -s <usb-serial>
  sbctool adb -s <ip>
  sbctool adb -s <ip:port>

Behavior:
  - No -s: if exactly one USB device -> use USB; else list devices (server).
  - -s ip:port: connect TCP direct to adbd.
  - -s ip: default port 5555.
  - -s usb-serial: use adb server to talk to that device.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if isHelpArg(adbSerialFlag) || (len(args) == 1 && isHelpArg(args[0])) {
			return cmd.Help()
		}

		serial, err := adbSerial(adbSerialFlag, args)
		if err != nil {
			return err
		}
		return adbCommand(cmd.Context(), serial)
	},
}

func init() {
	adbCmd.Flags().StringVarP(&adbSerialFlag, "serial", "s", "", "device serial, ip or ip:port")
	rootCmd.AddCommand(adbCmd)
}

// adbSerial picks the serial from -s or the positional argument.
func adbSerial(flag string, args []string) (string, error) {
	if len(args) == 0 {
		return flag, nil
	}
	if flag != "" && flag != args[0] {
		return "", errors.New(errors.ErrConfig,
			"Two different serials given: "+flag+" and "+args[0],
			"Pass the device once, either as -s SERIAL or as an argument.")
	}
	return args[0], nil
}

// adbDisplayName is how the target appears before it is connected.
func adbDisplayName(serial string) string {
	if serial == "" {
		return "auto"
	}
	return serial
}

// adbCommand connects to the device and runs the dashboard.
func adbCommand(ctx context.Context, serial string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resolver := transport.ADBResolver(serial, cfg.ADB.DefaultPort)
	greeting := "Connecting to ADB device: " + adbDisplayName(serial)

	session, err := connect(greeting, func(pause func()) (transport.Session, error) {
		return dialADB(ctx, resolver, cfg.ADB, transport.ADBOptions{
			PickDevice:   devicePicker(pause),
			OnAuthPrompt: authNotice(pause),
			Logger:       logger.NewEnvLogger("[adb]"),
		})
	})
	if err != nil {
		return err
	}

	return launchDashboard(ctx, session, cfg, greeting)
}
