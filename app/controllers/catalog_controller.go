package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/sciencedream/jukustream/app/models"
	"github.com/sciencedream/jukustream/app/repository"
	"github.com/sciencedream/jukustream/internal/pkg/metrics/counter"
	"github.com/sciencedream/jukustream/internal/pkg/usercontext"
)

// HandleListSubjects returns the subjects for the requested locale.
func HandleListSubjects(c *fiber.Ctx) error {
	subjects, err := repository.GetGlobalFactory().GetSubjectRepository().GetByLocale(requestLocale(c))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subjects")
	}
	return c.JSON(fiber.Map{"subjects": subjects})
}

// HandleListGrades returns the grades of one subject.
func HandleListGrades(c *fiber.Ctx) error {
	subjectID := parseUintParam(c, "id")
	if subjectID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid subject id")
	}

	factory := repository.GetGlobalFactory()
	if _, err := factory.GetSubjectRepository().GetByID(subjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Subject not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subject")
	}

	grades, err := factory.GetGradeRepository().GetBySubjectID(subjectID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load grades")
	}
	return c.JSON(fiber.Map{"grades": grades})
}

// HandleListVideos returns one grade's videos. Playback URLs are only
// included when the viewer holds a valid license covering the grade; the
// list itself stays browsable for everyone.
func HandleListVideos(c *fiber.Ctx) error {
	gradeID := parseUintParam(c, "id")
	if gradeID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid grade id")
	}

	factory := repository.GetGlobalFactory()
	if _, err := factory.GetGradeRepository().GetByID(gradeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Grade not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load grade")
	}

	videos, err := factory.GetVideoRepository().GetByGradeID(gradeID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load videos")
	}

	licensed := viewerHoldsLicense(c, gradeID)
	items := make([]fiber.Map, 0, len(videos))
	for _, v := range videos {
		item := fiber.Map{
			"uuid":        v.UUID,
			"title":       v.Title,
			"description": v.Description,
			"locale":      v.Locale,
			"view_count":  v.ViewCount,
		}
		if licensed {
			item["url"] = v.URL
		}
		items = append(items, item)
	}

	return c.JSON(fiber.Map{
		"videos":   items,
		"licensed": licensed,
	})
}

// HandleGetVideo returns one video for playback. Requires a valid license
// covering the video's grade and counts the view.
func HandleGetVideo(c *fiber.Ctx) error {
	uuid := c.Params("uuid")
	if uuid == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid video id")
	}

	video, err := repository.GetGlobalFactory().GetVideoRepository().GetByUUID(uuid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Video not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load video")
	}

	if !viewerHoldsLicense(c, video.GradeID) {
		return jsonError(c, fiber.StatusForbidden, "license_required", "A valid license is required to watch this video")
	}

	if err := counter.AddVideoView(video.ID); err != nil {
		// Counting must never block playback.
		log.Warnf("view counter increment failed for video %d: %v", video.ID, err)
	}

	return c.JSON(fiber.Map{
		"uuid":        video.UUID,
		"title":       video.Title,
		"url":         video.URL,
		"description": video.Description,
		"locale":      video.Locale,
		"grade_id":    video.GradeID,
	})
}

// viewerHoldsLicense checks whether the logged-in viewer has a currently
// valid license covering the grade. Expired licenses never grant access,
// canceled subscriptions stop granting access immediately.
func viewerHoldsLicense(c *fiber.Ctx, gradeID uint) bool {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return false
	}

	license, err := repository.GetGlobalFactory().GetLicenseRepository().
		GetValidByUserID(userCtx.UserID, time.Now())
	if err != nil {
		return false
	}
	return license.CoversGrade(gradeID)
}

// licenseResponse is shared by the account endpoints.
func licenseResponse(license *models.License, now time.Time) fiber.Map {
	return fiber.Map{
		"grade_id":     license.GradeID,
		"license_type": license.LicenseType,
		"purchased_at": license.PurchasedAt.UTC().Format(time.RFC3339),
		"expires_at":   license.ExpiresAt.UTC().Format(time.RFC3339),
		"is_canceled":  license.IsCanceled,
		"is_valid":     license.IsValidAt(now),
	}
}
