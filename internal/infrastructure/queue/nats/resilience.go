package nats

import (
	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/infrastructure/resilience"
)

// classifyNATSError retries connection-level failures. Payload and subject
// errors are permanent.
var classifyNATSError = resilience.Transient(
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionDraining,
	nats.ErrDisconnected,
	nats.ErrReconnectBufExceeded,
	nats.ErrSlowConsumer,
	nats.ErrNoResponders,
)

// temporaryError marks broker outages so callers see ErrTemporary instead of
// a raw driver error.
func temporaryError(op string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return err
}
