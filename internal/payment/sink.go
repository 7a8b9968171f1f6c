package payment

import (
	"context"
	"time"

	"github.com/idea-vending/vendsync/internal/infrastructure/logging"
)

// saveTimeout bounds a single store write from the stream path.
const saveTimeout = 5 * time.Second

// StoreSink persists normalized payment records arriving from the event
// stream. Storage failures are logged, never propagated: a full disk must not
// take the subscription down with it.
type StoreSink struct {
	repo   Repository
	logger *logging.Logger
}

// NewStoreSink creates a sink writing to the given repository.
func NewStoreSink(repo Repository, logger *logging.Logger) *StoreSink {
	return &StoreSink{
		repo:   repo,
		logger: logger.With("component", "payment-sink"),
	}
}

// Consume persists one record. Satisfies the stream sink contract.
func (s *StoreSink) Consume(p Payment) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := s.repo.Save(ctx, p); err != nil {
		s.logger.Error("Failed to persist payment",
			"payment_id", p.ID,
			"machine_id", p.MachineID,
			"error", err,
		)
		return
	}
	s.logger.Debug("Payment persisted", "payment_id", p.ID)
}
