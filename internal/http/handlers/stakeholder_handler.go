package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/subineru/redmine-stakeholder/internal/export"
	"github.com/subineru/redmine-stakeholder/internal/http/dto"
	"github.com/subineru/redmine-stakeholder/internal/middleware"
	"github.com/subineru/redmine-stakeholder/internal/models"
	"github.com/subineru/redmine-stakeholder/internal/services"
)

type StakeholderHandler struct {
	service *services.StakeholderService
	log     *zap.Logger
}

func NewStakeholderHandler(service *services.StakeholderService, log *zap.Logger) *StakeholderHandler {
	return &StakeholderHandler{service: service, log: log}
}

// fieldValues flattens the request into the canonical field order so a
// multi-field update always audits in the same sequence.
func fieldValues(req *dto.StakeholderFieldsRequest) []services.FieldValue {
	var out []services.FieldValue
	add := func(field string, v *string) {
		if v != nil {
			out = append(out, services.FieldValue{Field: field, Value: *v})
		}
	}
	add(models.FieldName, req.Name)
	add(models.FieldTitle, req.Title)
	add(models.FieldLocationType, req.LocationType)
	add(models.FieldProjectRole, req.ProjectRole)
	add(models.FieldPrimaryNeeds, req.PrimaryNeeds)
	add(models.FieldExpectations, req.Expectations)
	add(models.FieldParticipationDegree, req.ParticipationDegree)
	add(models.FieldPower, req.Power)
	add(models.FieldInterest, req.Interest)
	add(models.FieldPosition, req.Position)
	return out
}

// serviceError maps domain errors to HTTP responses. On untrusted surfaces
// (inline editing) validation detail is replaced with a generic message.
func (h *StakeholderHandler) serviceError(c *fiber.Ctx, err error, trusted bool) error {
	var ve *models.ValidationError
	var fe *models.ForbiddenFieldError

	switch {
	case errors.As(err, &ve):
		if !trusted {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
				Error:  "update failed",
				Errors: []string{"Update failed. Please check your input."},
			})
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Error:  "validation failed",
			Errors: ve.Messages(),
		})
	case errors.As(err, &fe):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "invalid field"})
	case errors.Is(err, models.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "stakeholder not found"})
	case errors.Is(err, models.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
			Error: "Too many requests. Please try again later.",
		})
	case errors.Is(err, models.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "permission denied"})
	default:
		h.log.Error("stakeholder request failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
}

func projectIDParam(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("projectID"))
}

func (h *StakeholderHandler) Create(c *fiber.Ctx) error {
	projectID, err := projectIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}

	var req dto.StakeholderFieldsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	rec, err := h.service.Create(c.Context(), middleware.GetUserID(c), projectID, fieldValues(&req))
	if err != nil {
		return h.serviceError(c, err, true)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: rec})
}

func (h *StakeholderHandler) List(c *fiber.Ctx) error {
	projectID, err := projectIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}

	switch format := c.Query("format"); format {
	case "csv", "xls":
		stakeholders, err := h.service.Export(c.Context(), middleware.GetUserID(c), projectID)
		if err != nil {
			return h.serviceError(c, err, true)
		}
		if format == "csv" {
			return h.exportCSV(c, projectID, stakeholders)
		}
		return h.exportXLS(c, projectID, stakeholders)
	}

	stakeholders, err := h.service.List(c.Context(), middleware.GetUserID(c), projectID)
	if err != nil {
		return h.serviceError(c, err, true)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: stakeholders})
}

func (h *StakeholderHandler) exportCSV(c *fiber.Ctx, projectID uuid.UUID, stakeholders []models.Stakeholder) error {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, stakeholders); err != nil {
		return h.serviceError(c, err, true)
	}

	h.log.Info("stakeholders csv export",
		zap.String("project", projectID.String()),
		zap.String("user", middleware.GetUserID(c).String()),
		zap.Int("records", len(stakeholders)))

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, exportFilename(projectID, "csv"))
	return c.Send(buf.Bytes())
}

func (h *StakeholderHandler) exportXLS(c *fiber.Ctx, projectID uuid.UUID, stakeholders []models.Stakeholder) error {
	var buf bytes.Buffer
	if err := export.WriteXLS(&buf, stakeholders); err != nil {
		return h.serviceError(c, err, true)
	}

	h.log.Info("stakeholders xls export",
		zap.String("project", projectID.String()),
		zap.String("user", middleware.GetUserID(c).String()),
		zap.Int("records", len(stakeholders)))

	c.Set(fiber.HeaderContentType, "application/vnd.ms-excel")
	c.Set(fiber.HeaderContentDisposition, exportFilename(projectID, "xls"))
	return c.Send(buf.Bytes())
}

func exportFilename(projectID uuid.UUID, ext string) string {
	return fmt.Sprintf(`attachment; filename="stakeholders_%s_%s.%s"`,
		projectID, time.Now().Format("2006-01-02"), ext)
}

func (h *StakeholderHandler) Get(c *fiber.Ctx) error {
	projectID, err := projectIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}
	recordID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid stakeholder id"})
	}

	rec, err := h.service.Get(c.Context(), middleware.GetUserID(c), projectID, recordID)
	if err != nil {
		return h.serviceError(c, err, true)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: rec})
}

func (h *StakeholderHandler) Update(c *fiber.Ctx) error {
	projectID, err := projectIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}
	recordID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid stakeholder id"})
	}

	var req dto.StakeholderFieldsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	rec, changes, err := h.service.Update(c.Context(), middleware.GetUserID(c), projectID, recordID, fieldValues(&req))
	if err != nil {
		return h.serviceError(c, err, true)
	}

	changed := make([]string, len(changes))
	for i, ch := range changes {
		changed[i] = ch.Field
	}
	return c.JSON(dto.UpdateResponse{OK: true, Data: rec, ChangedFields: changed})
}

func (h *StakeholderHandler) InlineUpdate(c *fiber.Ctx) error {
	projectID, err := projectIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}
	recordID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid stakeholder id"})
	}

	var req dto.InlineUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	formatted, err := h.service.InlineUpdate(c.Context(), middleware.GetUserID(c), projectID, recordID, req.Field, req.Value)
	if err != nil {
		return h.serviceError(c, err, false)
	}
	return c.JSON(dto.InlineUpdateResponse{OK: true, FormattedValue: formatted})
}

func (h *StakeholderHandler) Destroy(c *fiber.Ctx) error {
	projectID, err := projectIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}
	recordID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid stakeholder id"})
	}

	if err := h.service.Destroy(c.Context(), middleware.GetUserID(c), projectID, recordID); err != nil {
		return h.serviceError(c, err, true)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *StakeholderHandler) History(c *fiber.Ctx) error {
	projectID, err := projectIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}
	recordID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid stakeholder id"})
	}

	// Zero limit means the store default; negative values from crafted query
	// strings are ignored (Postgres rejects a negative OFFSET).
	limit, offset := 0, 0
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = n
	}
	if n, err := strconv.Atoi(c.Query("offset")); err == nil && n > 0 {
		offset = n
	}

	entries, err := h.service.History(c.Context(), middleware.GetUserID(c), projectID, recordID, limit, offset)
	if err != nil {
		return h.serviceError(c, err, true)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}

func (h *StakeholderHandler) Analytics(c *fiber.Ctx) error {
	projectID, err := projectIDParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}

	stats, err := h.service.Analytics(c.Context(), middleware.GetUserID(c), projectID)
	if err != nil {
		return h.serviceError(c, err, true)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: stats})
}
