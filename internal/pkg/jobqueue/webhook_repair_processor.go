package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sciencedream/jukustream/internal/pkg/billing"
	"github.com/sciencedream/jukustream/internal/pkg/database"
)

// processWebhookRepairJob re-applies webhook ledger rows whose processing
// failed or never finished.
func (q *Queue) processWebhookRepairJob(ctx context.Context, job *Job) error {
	payload, err := WebhookRepairJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid webhook repair payload: %w", err)
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	repaired, err := svc.ReprocessFailedEvents(ctx, payload.Limit)
	if err != nil {
		return fmt.Errorf("webhook repair: %w", err)
	}

	if repaired > 0 {
		log.Infof("[JobQueue] Webhook repair recovered %d events", repaired)
	}
	return nil
}
