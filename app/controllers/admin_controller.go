package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sciencedream/jukustream/app/models"
	"github.com/sciencedream/jukustream/app/repository"
	"github.com/sciencedream/jukustream/internal/pkg/invoice"
	"github.com/sciencedream/jukustream/internal/pkg/jobqueue"
	"github.com/sciencedream/jukustream/internal/pkg/statistics"
)

// pagination reads offset/limit query params with sane bounds.
func pagination(c *fiber.Ctx) (int, int) {
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return offset, limit
}

// HandleAdminStats returns the dashboard headline numbers.
func HandleAdminStats(c *fiber.Ctx) error {
	stats := statistics.GetStatisticsData()
	return c.JSON(fiber.Map{
		"total_users":  stats.TotalUsers,
		"total_videos": stats.TotalVideos,
		"today_sales":  stats.TodaySales,
	})
}

// --- subjects ---

// HandleAdminCreateSubject creates a catalog subject.
func HandleAdminCreateSubject(c *fiber.Ctx) error {
	var subject models.Subject
	if err := c.BodyParser(&subject); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if err := subject.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if err := repository.GetGlobalFactory().GetSubjectRepository().Create(&subject); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create subject")
	}
	return c.Status(fiber.StatusCreated).JSON(subject)
}

// HandleAdminUpdateSubject updates a catalog subject.
func HandleAdminUpdateSubject(c *fiber.Ctx) error {
	id := parseUintParam(c, "id")
	repo := repository.GetGlobalFactory().GetSubjectRepository()

	subject, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Subject not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subject")
	}
	if err := c.BodyParser(subject); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	subject.ID = id
	if err := subject.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if err := repo.Update(subject); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update subject")
	}
	return c.JSON(subject)
}

// HandleAdminDeleteSubject deletes a subject with its grades and videos.
func HandleAdminDeleteSubject(c *fiber.Ctx) error {
	id := parseUintParam(c, "id")
	if err := repository.GetGlobalFactory().GetSubjectRepository().Delete(id); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete subject")
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// HandleAdminListSubjects lists all subjects across locales.
func HandleAdminListSubjects(c *fiber.Ctx) error {
	subjects, err := repository.GetGlobalFactory().GetSubjectRepository().GetAll()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subjects")
	}
	return c.JSON(fiber.Map{"subjects": subjects})
}

// --- grades ---

// HandleAdminCreateGrade creates a grade under a subject.
func HandleAdminCreateGrade(c *fiber.Ctx) error {
	var grade models.Grade
	if err := c.BodyParser(&grade); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if err := grade.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	factory := repository.GetGlobalFactory()
	if _, err := factory.GetSubjectRepository().GetByID(grade.SubjectID); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "Unknown subject")
	}
	if err := factory.GetGradeRepository().Create(&grade); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create grade")
	}
	return c.Status(fiber.StatusCreated).JSON(grade)
}

// HandleAdminUpdateGrade updates a grade.
func HandleAdminUpdateGrade(c *fiber.Ctx) error {
	id := parseUintParam(c, "id")
	repo := repository.GetGlobalFactory().GetGradeRepository()

	grade, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Grade not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load grade")
	}
	if err := c.BodyParser(grade); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	grade.ID = id
	if err := grade.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if err := repo.Update(grade); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update grade")
	}
	return c.JSON(grade)
}

// HandleAdminDeleteGrade deletes a grade with its videos.
func HandleAdminDeleteGrade(c *fiber.Ctx) error {
	id := parseUintParam(c, "id")
	if err := repository.GetGlobalFactory().GetGradeRepository().Delete(id); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete grade")
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// --- videos ---

// HandleAdminCreateVideo creates a video under a grade.
func HandleAdminCreateVideo(c *fiber.Ctx) error {
	var video models.Video
	if err := c.BodyParser(&video); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if err := video.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	factory := repository.GetGlobalFactory()
	if _, err := factory.GetGradeRepository().GetByID(video.GradeID); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", "Unknown grade")
	}
	if err := factory.GetVideoRepository().Create(&video); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create video")
	}
	return c.Status(fiber.StatusCreated).JSON(video)
}

// HandleAdminUpdateVideo updates a video.
func HandleAdminUpdateVideo(c *fiber.Ctx) error {
	id := parseUintParam(c, "id")
	repo := repository.GetGlobalFactory().GetVideoRepository()

	video, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Video not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load video")
	}
	if err := c.BodyParser(video); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	video.ID = id
	if err := video.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if err := repo.Update(video); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update video")
	}
	return c.JSON(video)
}

// HandleAdminDeleteVideo deletes a video.
func HandleAdminDeleteVideo(c *fiber.Ctx) error {
	id := parseUintParam(c, "id")
	if err := repository.GetGlobalFactory().GetVideoRepository().Delete(id); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete video")
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// --- users ---

// HandleAdminListUsers lists users, optionally filtered by a search query.
func HandleAdminListUsers(c *fiber.Ctx) error {
	repo := repository.GetGlobalFactory().GetUserRepository()

	if q := c.Query("q"); q != "" {
		users, err := repo.Search(q)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to search users")
		}
		return c.JSON(fiber.Map{"users": users})
	}

	offset, limit := pagination(c)
	users, err := repo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load users")
	}
	total, err := repo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to count users")
	}
	return c.JSON(fiber.Map{"users": users, "total": total})
}

// --- jukus ---

// HandleAdminListJukus lists all cram schools.
func HandleAdminListJukus(c *fiber.Ctx) error {
	jukus, err := repository.GetGlobalFactory().GetJukuRepository().GetAll()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load jukus")
	}
	return c.JSON(fiber.Map{"jukus": jukus})
}

// HandleAdminCreateJuku registers a cram school.
func HandleAdminCreateJuku(c *fiber.Ctx) error {
	var juku models.Juku
	if err := c.BodyParser(&juku); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	if err := juku.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if err := repository.GetGlobalFactory().GetJukuRepository().Create(&juku); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create juku")
	}
	return c.Status(fiber.StatusCreated).JSON(juku)
}

// HandleAdminUpdateJuku updates a cram school.
func HandleAdminUpdateJuku(c *fiber.Ctx) error {
	id := parseUintParam(c, "id")
	repo := repository.GetGlobalFactory().GetJukuRepository()

	juku, err := repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Juku not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load juku")
	}
	if err := c.BodyParser(juku); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid request body")
	}
	juku.ID = id
	if err := juku.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
	if err := repo.Update(juku); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update juku")
	}
	return c.JSON(juku)
}

// HandleAdminDeleteJuku removes a cram school.
func HandleAdminDeleteJuku(c *fiber.Ctx) error {
	id := parseUintParam(c, "id")
	if err := repository.GetGlobalFactory().GetJukuRepository().Delete(id); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete juku")
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// --- sales ---

// HandleAdminListSales lists the sale ledger, newest first.
func HandleAdminListSales(c *fiber.Ctx) error {
	offset, limit := pagination(c)
	repo := repository.GetGlobalFactory().GetSaleRepository()

	sales, err := repo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load sales")
	}
	total, err := repo.TotalAmount()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to sum sales")
	}
	return c.JSON(fiber.Map{"sales": sales, "total_amount": total})
}

// HandleAdminPayouts reports the payout owed to every cram school.
func HandleAdminPayouts(c *fiber.Ctx) error {
	factory := repository.GetGlobalFactory()
	jukus, err := factory.GetJukuRepository().GetAll()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load jukus")
	}

	saleRepo := factory.GetSaleRepository()
	payouts := make([]fiber.Map, 0, len(jukus))
	for _, juku := range jukus {
		total, err := saleRepo.TotalAmountByJukuID(juku.ID)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to sum juku sales")
		}
		payouts = append(payouts, fiber.Map{
			"juku_id":      juku.ID,
			"juku_name":    juku.Name,
			"total_amount": total,
			"payout":       invoice.PayoutFor(total),
		})
	}
	return c.JSON(fiber.Map{"payouts": payouts})
}

// HandleAdminSendInvoices enqueues invoice emails for every cram school for
// the given month (defaults to last month).
func HandleAdminSendInvoices(c *fiber.Ctx) error {
	year, _ := strconv.Atoi(c.Query("year", "0"))
	month, _ := strconv.Atoi(c.Query("month", "0"))

	jukus, err := repository.GetGlobalFactory().GetJukuRepository().GetAll()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load jukus")
	}

	queue := jobqueue.GetManager().GetQueue()
	enqueued := 0
	for _, juku := range jukus {
		if juku.ContactEmail == "" {
			continue
		}
		payload := jobqueue.InvoiceSendJobPayload{JukuID: juku.ID, Year: year, Month: month}
		if _, err := queue.EnqueueJob(jobqueue.JobTypeInvoiceSend, payload.ToMap()); err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to enqueue invoices")
		}
		enqueued++
	}
	return c.JSON(fiber.Map{"enqueued": enqueued})
}
