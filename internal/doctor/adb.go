package doctor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sbctool/sbctool/internal/adb"
	"github.com/sbctool/sbctool/internal/config"
	"github.com/sbctool/sbctool/internal/util"
)

const adbServerTimeout = 2 * time.Second

// ADBServerCheck asks the adb server which devices it sees. The server is
// only needed for serial-addressed devices, so an absent server is a warning.
type ADBServerCheck struct {
	Addr string
}

func (c *ADBServerCheck) Name() string     { return "adb_server" }
func (c *ADBServerCheck) Category() string { return CategoryADB }

func (c *ADBServerCheck) Run(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, adbServerTimeout)
	defer cancel()

	server := adb.NewServer(c.Addr)
	devices, err := server.Devices(ctx)
	if err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("adb server not reachable at %s", server.Addr),
			Suggestion: "Start it with: adb start-server\nDirect TCP (-s ip:port) and USB still work without it",
		}
	}

	var unauthorized []string
	for _, d := range devices {
		if d.State == "unauthorized" {
			unauthorized = append(unauthorized, d.Serial)
		}
	}
	if len(unauthorized) > 0 {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("Unauthorized %s: %s", util.Pluralize(len(unauthorized), "device", "devices"), util.JoinOrDefault(unauthorized, "")),
			Suggestion: "Accept the USB debugging prompt on the device",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("adb server at %s, %d %s attached", server.Addr, len(devices), util.Pluralize(len(devices), "device", "devices")),
	}
}

func (c *ADBServerCheck) Fix() error {
	return nil
}

// ADBKeyCheck verifies the adb key loads. Without one a temporary key is
// generated, and the device asks for authorization on every connection.
type ADBKeyCheck struct {
	Path string
}

func (c *ADBKeyCheck) Name() string     { return "adb_key" }
func (c *ADBKeyCheck) Category() string { return CategoryADB }

func (c *ADBKeyCheck) Run(context.Context) CheckResult {
	path := config.ExpandTilde(c.Path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusWarn,
			Message:    fmt.Sprintf("No adb key at %s", c.Path),
			Suggestion: "Run 'adb start-server' once to create one, or set adb.key_path",
		}
	}

	if _, err := adb.LoadKey(path); err != nil {
		return CheckResult{
			Name:       c.Name(),
			Status:     StatusFail,
			Message:    fmt.Sprintf("Cannot load adb key: %v", err),
			Suggestion: "Point adb.key_path at an RSA private key in PEM format",
		}
	}

	return CheckResult{
		Name:    c.Name(),
		Status:  StatusPass,
		Message: fmt.Sprintf("adb key: %s", c.Path),
	}
}

func (c *ADBKeyCheck) Fix() error {
	return nil
}

// NewADBChecks creates all ADB-related checks.
func NewADBChecks(cfg config.ADBConfig) []Check {
	return []Check{
		&ADBServerCheck{Addr: cfg.ServerAddr},
		&ADBKeyCheck{Path: cfg.KeyPath},
	}
}
