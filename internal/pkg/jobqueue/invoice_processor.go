package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/sciencedream/jukustream/app/models"
	"github.com/sciencedream/jukustream/internal/pkg/database"
	"github.com/sciencedream/jukustream/internal/pkg/invoice"
	"github.com/sciencedream/jukustream/internal/pkg/mail"
)

// processInvoiceSendJob builds and emails the monthly payout statement for
// one cram school.
func (q *Queue) processInvoiceSendJob(ctx context.Context, job *Job) error {
	_ = ctx
	payload, err := InvoiceSendJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid invoice payload: %w", err)
	}
	if payload.JukuID == 0 {
		return fmt.Errorf("invoice payload missing juku_id")
	}

	db := database.GetDB()

	var juku models.Juku
	if err := db.First(&juku, payload.JukuID).Error; err != nil {
		return fmt.Errorf("load juku %d: %w", payload.JukuID, err)
	}
	if juku.ContactEmail == "" {
		return fmt.Errorf("juku %d has no contact email", juku.ID)
	}

	year, month := payload.Year, payload.Month
	if year == 0 || month == 0 {
		// Default to the previous calendar month.
		prev := time.Now().AddDate(0, -1, 0)
		year, month = prev.Year(), int(prev.Month())
	}
	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var agg struct {
		SaleCount int64
		Total     int64
	}
	err = db.Model(&models.Sale{}).
		Where("juku_id = ? AND created_at >= ? AND created_at < ?", juku.ID, monthStart, monthEnd).
		Select("COUNT(*) AS sale_count, COALESCE(SUM(amount), 0) AS total").
		Scan(&agg).Error
	if err != nil {
		return fmt.Errorf("aggregate sales for juku %d: %w", juku.ID, err)
	}

	inv := invoice.Build(&juku, year, month, agg.SaleCount, agg.Total)
	body, err := inv.RenderHTML()
	if err != nil {
		return fmt.Errorf("render invoice: %w", err)
	}

	if err := mail.SendMail(juku.ContactEmail, inv.Subject(), body); err != nil {
		return fmt.Errorf("send invoice to %s: %w", juku.ContactEmail, err)
	}

	log.Infof("[JobQueue] Invoice %04d-%02d sent to juku %d (%d sales, payout %d)",
		year, month, juku.ID, agg.SaleCount, inv.Payout)
	return nil
}
