package ingress

import (
	"context"
	"net"
	"strconv"
	"syscall"

	"github.com/bashhack/gitjournal/internal/errors"
	"github.com/bashhack/gitjournal/internal/logger"
)

const (
	// DefaultBasePort is the first port tried for the ingestion listener.
	DefaultBasePort = 3000

	// DefaultMaxAttempts is how many sequential ports are tried.
	DefaultMaxAttempts = 100

	// DefaultHost keeps the unauthenticated endpoint off external interfaces.
	DefaultHost = "127.0.0.1"
)

// RetryPolicy decides which ports the listener tries and how many times.
type RetryPolicy struct {
	BasePort    int
	MaxAttempts int
	Step        int
}

// DefaultRetryPolicy returns the policy used when nothing is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BasePort:    DefaultBasePort,
		MaxAttempts: DefaultMaxAttempts,
		Step:        1,
	}
}

// Attempts returns the number of binds to try, at least one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 || p.BasePort == 0 {
		return 1
	}
	return p.MaxAttempts
}

// Port returns the port for the zero-based attempt.
func (p RetryPolicy) Port(attempt int) int {
	step := p.Step
	if step < 1 {
		step = 1
	}
	return p.BasePort + attempt*step
}

// LastPort returns the final port the policy will try.
func (p RetryPolicy) LastPort() int {
	return p.Port(p.Attempts() - 1)
}

// Listen binds a TCP listener on host, moving to the next port each time the
// current one is already in use. Any other failure, or running out of
// attempts, yields a *errors.BindError.
func (p RetryPolicy) Listen(ctx context.Context, host string, log logger.Logger) (net.Listener, error) {
	var lc net.ListenConfig

	for attempt := 0; attempt < p.Attempts(); attempt++ {
		port := p.Port(attempt)
		if port > 65535 {
			break
		}

		listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return listener, nil
		}

		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, errors.NewBindError(port, port, err)
		}
		log.Warning("Port %d in use, trying next...", port)
	}

	return nil, errors.NewBindError(p.BasePort, p.LastPort(),
		errors.Wrapf(errors.ErrPortExhausted, "tried %d ports", p.Attempts()))
}
