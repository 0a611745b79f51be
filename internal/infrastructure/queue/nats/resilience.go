package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/notegraph/graphsearch/internal/core/domain"
	"github.com/notegraph/graphsearch/internal/infrastructure/resilience"
)

func classifyNATSError(err error) resilience.ErrorClass {
	if err == nil {
		return resilience.ErrorClass{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClass{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClass{Retry: true, CountFailure: true}
	}
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) {
		return resilience.ErrorClass{Retry: true, CountFailure: true}
	}
	return resilience.ErrorClass{CountFailure: true}
}

func wrapTemporaryIfNeeded(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retry || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "publish progress", err)
	}
	return err
}
