package transport

import (
	"context"
	"strings"
	"time"

	"github.com/sbctool/sbctool/internal/adb"
	"github.com/sbctool/sbctool/internal/config"
	"github.com/sbctool/sbctool/internal/logger"
)

// ADBSession runs commands through adb shell.
type ADBSession struct {
	dev            *adb.Device
	target         Target
	defaultTimeout time.Duration
}

// NewADBSession wraps a connected device.
func NewADBSession(dev *adb.Device, target Target, defaultTimeout time.Duration) *ADBSession {
	target.Serial = dev.Serial()
	return &ADBSession{dev: dev, target: target, defaultTimeout: defaultTimeout}
}

// Execute runs command with adb shell. Without shell v2 the exit status
// is unknown and any output counts as success.
func (s *ADBSession) Execute(ctx context.Context, command string, timeout time.Duration) (string, error) {
	ctx, cancel, timeout := withTimeout(ctx, timeout, s.defaultTimeout)
	defer cancel()

	res, err := s.dev.Shell(ctx, command)
	if err != nil {
		return "", commandFailure(ctx, command, timeout, err)
	}
	if res.ExitCode > 0 {
		return "", exitFailure(command, res.ExitCode, res.Stderr)
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

func (s *ADBSession) Target() Target { return s.target }

// Persistent is true when the device is held over a direct or USB link.
func (s *ADBSession) Persistent() bool { return s.dev.Route() != adb.RouteServer }

func (s *ADBSession) Close() error { return s.dev.Close() }

// ADBOptions carries the interactive hooks of DialADB.
type ADBOptions struct {
	PickDevice   func(serials []string) (string, error)
	OnAuthPrompt func()
	Logger       logger.Logger
}

// DialADB resolves the address and connects to the device.
func DialADB(ctx context.Context, r *Resolver, cfg config.ADBConfig, opts ADBOptions) (Session, error) {
	target, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	dev, err := adb.Connect(ctx, target.ADB, adb.Options{
		ServerAddr:     cfg.ServerAddr,
		KeyPath:        cfg.KeyPath,
		USB:            cfg.USB,
		ConnectTimeout: cfg.ConnectTimeout,
		Pick:           opts.PickDevice,
		OnAuthPrompt:   opts.OnAuthPrompt,
		Logger:         opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Or(opts.Logger).Debug("adb device %s via %s (shell v2: %t)", dev.Serial(), dev.Route(), dev.ShellV2())
	return NewADBSession(dev, target, cfg.CommandTimeout), nil
}
