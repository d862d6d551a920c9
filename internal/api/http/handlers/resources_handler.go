package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/identity-service/internal/api/dto"
	"github.com/spec-kit/identity-service/internal/service"
	apperrors "github.com/spec-kit/identity-service/pkg/util/errorutil"
)

// ResourcesHandler exposes CRUD endpoints for resources.
type ResourcesHandler struct {
	resources *service.ResourceService
	validator *Validator
}

// NewResourcesHandler constructs handler.
func NewResourcesHandler(resources *service.ResourceService, validator *Validator) *ResourcesHandler {
	return &ResourcesHandler{resources: resources, validator: validator}
}

// List handles GET /api/v1/resources.
func (h *ResourcesHandler) List(c *fiber.Ctx) error {
	views, err := h.resources.GetAll(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.ResourceResponse, 0, len(views))
	for _, v := range views {
		out = append(out, dto.ResourceResponse{ID: v.ID, Name: v.Name})
	}
	return c.JSON(out)
}

// Get handles GET /api/v1/resources/:id.
func (h *ResourcesHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	view, err := h.resources.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(dto.ResourceResponse{ID: view.ID, Name: view.Name})
}

// Create handles POST /api/v1/resources.
func (h *ResourcesHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateResourceRequest
	if err := h.validator.bind(c, &req); err != nil {
		return err
	}

	id, err := h.resources.Add(c.UserContext(), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Resource created successfully.", ID: id})
}

// Update handles PUT /api/v1/resources/:id.
func (h *ResourcesHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateResourceRequest
	if err := h.validator.bind(c, &req); err != nil {
		return err
	}
	if req.ID != "" && !sameID(req.ID, id) {
		return apperrors.NewValidationError("route id and body id must match", map[string]any{"id": req.ID})
	}

	if err := h.resources.Update(c.UserContext(), id, req.Name); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Resource updated successfully."})
}

// Delete handles DELETE /api/v1/resources/:id.
func (h *ResourcesHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.resources.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: "Resource deleted successfully."})
}

// pathID parses the :id parameter and returns it in canonical form.
func pathID(c *fiber.Ctx) (string, error) {
	parsed, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return "", apperrors.NewValidationError("invalid id", map[string]any{"id": c.Params("id")})
	}
	return parsed.String(), nil
}

func sameID(a, b string) bool {
	pa, err := uuid.Parse(a)
	if err != nil {
		return false
	}
	return pa.String() == b
}
