package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/sciencedream/jukustream/app/repository"
	"github.com/sciencedream/jukustream/internal/pkg/invoice"
	"github.com/sciencedream/jukustream/internal/pkg/jobqueue"
	"github.com/sciencedream/jukustream/internal/pkg/usercontext"
)

// requestJukuID resolves which cram school a dashboard request refers to.
// Operators are locked to their own school; admins may pick any via query.
func requestJukuID(c *fiber.Ctx) uint {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.JukuID != 0 {
		return userCtx.JukuID
	}
	if userCtx.IsAdmin {
		if v, err := strconv.ParseUint(c.Query("juku_id"), 10, 32); err == nil {
			return uint(v)
		}
	}
	return 0
}

// HandleJukuSales lists the school's attributed sales with the running
// payout total.
func HandleJukuSales(c *fiber.Ctx) error {
	jukuID := requestJukuID(c)
	if jukuID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "No juku selected")
	}

	offset, limit := pagination(c)
	repo := repository.GetGlobalFactory().GetSaleRepository()

	sales, err := repo.ListByJukuID(jukuID, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load sales")
	}
	total, err := repo.TotalAmountByJukuID(jukuID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to sum sales")
	}

	return c.JSON(fiber.Map{
		"sales":        sales,
		"total_amount": total,
		"payout":       invoice.PayoutFor(total),
	})
}

// HandleJukuMonthlySales returns the per-month revenue and payout breakdown.
func HandleJukuMonthlySales(c *fiber.Ctx) error {
	jukuID := requestJukuID(c)
	if jukuID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "No juku selected")
	}

	months, _ := strconv.Atoi(c.Query("months", "12"))
	rows, err := repository.GetGlobalFactory().GetSaleRepository().MonthlyTotals(jukuID, months)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to aggregate sales")
	}

	items := make([]fiber.Map, 0, len(rows))
	for _, row := range rows {
		items = append(items, fiber.Map{
			"year":       row.Year,
			"month":      row.Month,
			"sale_count": row.SaleCount,
			"total":      row.Total,
			"payout":     invoice.PayoutFor(row.Total),
		})
	}
	return c.JSON(fiber.Map{"monthly_sales": items})
}

// HandleJukuStudents lists the students attributed to the school.
func HandleJukuStudents(c *fiber.Ctx) error {
	jukuID := requestJukuID(c)
	if jukuID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "No juku selected")
	}

	users, err := repository.GetGlobalFactory().GetUserRepository().ListByJukuID(jukuID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load students")
	}

	students := make([]fiber.Map, 0, len(users))
	for _, u := range users {
		students = append(students, fiber.Map{
			"id":            u.ID,
			"name":          u.Name,
			"email":         u.Email,
			"is_subscribed": u.IsSubscribed,
			"last_login_at": formatTimePtr(u.LastLoginAt),
		})
	}
	return c.JSON(fiber.Map{"students": students})
}

// HandleJukuInvoiceSend enqueues the school's payout statement email.
func HandleJukuInvoiceSend(c *fiber.Ctx) error {
	jukuID := requestJukuID(c)
	if jukuID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "No juku selected")
	}

	year, _ := strconv.Atoi(c.Query("year", "0"))
	month, _ := strconv.Atoi(c.Query("month", "0"))

	payload := jobqueue.InvoiceSendJobPayload{JukuID: jukuID, Year: year, Month: month}
	job, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeInvoiceSend, payload.ToMap())
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to enqueue invoice")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": job.ID})
}
