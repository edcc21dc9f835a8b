package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/subineru/redmine-stakeholder/internal/http/dto"
	"github.com/subineru/redmine-stakeholder/internal/models"
	"github.com/subineru/redmine-stakeholder/internal/rbac"
	"github.com/subineru/redmine-stakeholder/internal/repositories"
)

type ProjectHandler struct {
	projects *repositories.ProjectRepo
	log      *zap.Logger
}

func NewProjectHandler(projects *repositories.ProjectRepo, log *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, log: log}
}

func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Identifier == "" || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "identifier and name are required"})
	}

	p := &models.Project{Identifier: req.Identifier, Name: req.Name}
	if err := h.projects.Create(c.Context(), p); err != nil {
		h.log.Error("create project failed", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "could not create project"})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *ProjectHandler) AddMember(c *fiber.Ctx) error {
	projectID, err := uuid.Parse(c.Params("projectID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid project id"})
	}

	var req dto.AddMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user id"})
	}
	if !rbac.IsValidRole(req.Role) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid role"})
	}

	if _, err := h.projects.GetByID(c.Context(), projectID); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "project not found"})
	}

	m := &models.ProjectMember{ProjectID: projectID, UserID: userID, Role: req.Role}
	if err := h.projects.AddMember(c.Context(), m); err != nil {
		h.log.Error("add member failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: m})
}
