package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"storefront/internal/middleware"
	"storefront/internal/services"
)

// UserHandler serves account administration. Every route is admin only.
type UserHandler struct {
	service  *services.UserService
	validate *validator.Validate
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *UserHandler) RegisterRoutes(router fiber.Router, authRequired, adminRequired fiber.Handler) {
	userRoutes := router.Group("/users", authRequired, adminRequired)
	userRoutes.Get("/", h.HandleListUsers)
	userRoutes.Get("/stats", h.HandleStats)
	userRoutes.Get("/:id", h.HandleGetUser)
	userRoutes.Put("/:id", h.HandleUpdateUser)
	userRoutes.Put("/:id/role", h.HandleUpdateRole)
	userRoutes.Delete("/:id", h.HandleDeleteUser)
}

// UserUpdateRequest is an admin edit of an account; omitted fields are unchanged.
type UserUpdateRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=2,max=100"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone" validate:"omitempty,max=30"`
	Role  *string `json:"role" validate:"omitempty,oneof=user admin"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

func (h *UserHandler) HandleListUsers(c *fiber.Ctx) error {
	page, err := h.service.ListUsers(c.UserContext(), c.Query("search"), pageQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *UserHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"stats": stats})
}

func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	user, err := h.service.GetUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user": user})
}

func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	var req UserUpdateRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	user, err := h.service.UpdateUser(c.UserContext(), c.Params("id"), services.UserUpdate{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Role:  req.Role,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"user":    user,
	})
}

func (h *UserHandler) HandleUpdateRole(c *fiber.Ctx) error {
	var req roleRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}

	user, err := h.service.UpdateRole(c.UserContext(), c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "User role updated successfully",
		"user":    user,
	})
}

func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	if err := h.service.DeleteUser(c.UserContext(), middleware.Actor(c).UserID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}
