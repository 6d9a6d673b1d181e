package leave

import (
	"context"

	"github.com/warp/leave-ledger/generic"
)

// Publisher receives adjustments after they are committed. Delivery is best
// effort: a failed publish is logged and never rolls back the ledger.
type Publisher interface {
	PublishAdjustments(ctx context.Context, adjustments []generic.Adjustment) error
}

type nopPublisher struct{}

func (nopPublisher) PublishAdjustments(context.Context, []generic.Adjustment) error { return nil }

func (s *Service) publish(ctx context.Context, adjustments []generic.Adjustment) {
	if len(adjustments) == 0 {
		return
	}
	if err := s.publisher.PublishAdjustments(ctx, adjustments); err != nil {
		s.logger.Error("failed to publish adjustments",
			"count", len(adjustments),
			"employee_id", adjustments[0].EmployeeID,
			"error", err,
		)
	}
}
