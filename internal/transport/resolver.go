package transport

import (
	"context"
	"sync"

	"github.com/sbctool/sbctool/internal/adb"
	"github.com/sbctool/sbctool/pkg/sshutil"
)

// ResolveFunc turns user input into a Target.
type ResolveFunc func(ctx context.Context) (Target, error)

// Resolver resolves a target once and returns the same result on every
// later call, including a failure.
type Resolver struct {
	fn     ResolveFunc
	once   sync.Once
	target Target
	err    error
}

// NewResolver wraps fn so it runs at most once.
func NewResolver(fn ResolveFunc) *Resolver {
	return &Resolver{fn: fn}
}

// Resolve returns the cached target, resolving it on first use.
func (r *Resolver) Resolve(ctx context.Context) (Target, error) {
	r.once.Do(func() {
		r.target, r.err = r.fn(ctx)
	})
	return r.target, r.err
}

// SSHResolver resolves spec with the ssh -G / ssh_config / environment chain.
func SSHResolver(spec string, sr *sshutil.Resolver) *Resolver {
	return NewResolver(func(ctx context.Context) (Target, error) {
		t, err := sr.Resolve(ctx, spec)
		if err != nil {
			return Target{}, err
		}
		return Target{Kind: KindSSH, Spec: spec, SSH: t}, nil
	})
}

// ADBResolver classifies an ADB address. It never fails.
func ADBResolver(spec string, defaultPort int) *Resolver {
	return NewResolver(func(context.Context) (Target, error) {
		return Target{Kind: KindADB, Spec: spec, ADB: adb.ParseAddress(spec, defaultPort)}, nil
	})
}
