package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/akarpov87/userfleet/internal/models"
)

// UserService is the part of the service layer the handlers call.
type UserService interface {
	Update(ctx context.Context, data models.UserUpdate, fields []string) (*models.User, error)
	Fetch(ctx context.Context, criteria string, fields []string) (*models.User, error)
	Count(ctx context.Context, filters models.UserFilters) (int64, error)
	Find(ctx context.Context, filters models.UserFilters, fields []string, skip, limit int64) ([]models.User, error)
	CarsCount(ctx context.Context, criteria string) (int64, error)
	AddCar(ctx context.Context, criteria, carID, regNumber string, fields []string) (*models.User, error)
	RemoveCar(ctx context.Context, carID string, fields []string) (*models.User, error)
}

type UserHandler struct {
	service  UserService
	validate *validator.Validate
}

func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: validator.New(),
	}
}

// UserPayload is the create/update request body. The required fields
// are only mandatory when no id is given, i.e. on create.
type UserPayload struct {
	ID        string  `json:"_id"`
	Email     *string `json:"email" validate:"required_without=ID,omitempty,email"`
	Password  *string `json:"password" validate:"required_without=ID"`
	IsActive  *bool   `json:"isActive"`
	IsAdmin   *bool   `json:"isAdmin"`
	FirstName *string `json:"firstName" validate:"required_without=ID"`
	LastName  *string `json:"lastName" validate:"required_without=ID"`
}

type CarPayload struct {
	CarID     string `json:"carId" validate:"required"`
	RegNumber string `json:"regNumber" validate:"required"`
}

// UpdateUser creates a user when the body carries no id and updates
// the existing one otherwise.
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	var payload UserPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": validationDetails(err),
		})
	}

	fields, err := parseFields(c.Query("fields"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	data := models.UserUpdate{
		ID:        payload.ID,
		Email:     payload.Email,
		Password:  payload.Password,
		IsActive:  payload.IsActive,
		IsAdmin:   payload.IsAdmin,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
	}

	user, err := h.service.Update(c.Context(), data, fields)
	switch {
	case errors.Is(err, models.ErrDuplicateEmail):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidUserID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	if payload.ID == "" {
		return c.Status(fiber.StatusCreated).JSON(user)
	}
	return c.JSON(user)
}

// FetchUser looks a user up by email or id, depending on whether the
// criteria contains an "@".
func (h *UserHandler) FetchUser(c *fiber.Ctx) error {
	fields, err := parseFields(c.Query("fields"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := h.service.Fetch(c.Context(), c.Params("criteria"), fields)
	switch {
	case errors.Is(err, models.ErrInvalidUserID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}

	return c.JSON(user)
}

func (h *UserHandler) CountUsers(c *fiber.Ctx) error {
	filters, err := parseFilters(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	count, err := h.service.Count(c.Context(), filters)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"count": count})
}

func (h *UserHandler) FindUsers(c *fiber.Ctx) error {
	filters, err := parseFilters(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	fields, err := parseFields(c.Query("fields"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	skip, err := queryInt64(c, "skip")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	limit, err := queryInt64(c, "limit")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	users, err := h.service.Find(c.Context(), filters, fields, skip, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(users)
}

func (h *UserHandler) CountCars(c *fiber.Ctx) error {
	count, err := h.service.CarsCount(c.Context(), c.Params("criteria"))
	switch {
	case errors.Is(err, models.ErrInvalidUserID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"count": count})
}

func (h *UserHandler) AddCar(c *fiber.Ctx) error {
	var payload CarPayload
	if err := c.BodyParser(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation failed",
			"details": validationDetails(err),
		})
	}

	fields, err := parseFields(c.Query("fields"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := h.service.AddCar(c.Context(), c.Params("criteria"), payload.CarID, payload.RegNumber, fields)
	switch {
	case errors.Is(err, models.ErrInvalidUserID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, models.ErrCarLimitExceeded):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Failed to add car"})
	}

	return c.JSON(user)
}

// RemoveCar pulls a car from whichever user owns it.
func (h *UserHandler) RemoveCar(c *fiber.Ctx) error {
	fields, err := parseFields(c.Query("fields"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := h.service.RemoveCar(c.Context(), c.Params("carId"), fields)
	switch {
	case errors.Is(err, models.ErrInvalidCarID):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Failed to remove car"})
	}

	return c.JSON(user)
}

var allowedFields = map[string]bool{
	"_id":       true,
	"email":     true,
	"password":  true,
	"isActive":  true,
	"isAdmin":   true,
	"firstName": true,
	"lastName":  true,
	"cars":      true,
}

var allowedFilters = map[string]bool{
	"email":     true,
	"firstName": true,
	"lastName":  true,
	"isActive":  true,
	"isAdmin":   true,
	"fields":    true,
	"skip":      true,
	"limit":     true,
}

// parseFields splits a comma or space separated projection list and
// rejects names outside the user document.
func parseFields(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if !allowedFields[p] {
			return nil, fmt.Errorf("unknown field %q", p)
		}
		fields = append(fields, p)
	}
	return fields, nil
}

// parseFilters reads the enumerated filter parameters. Query keys
// outside the allow-list are rejected so caller input can never smuggle
// operators into the store predicate.
func queryInt64(c *fiber.Ctx, name string) (int64, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", name, v)
	}
	return n, nil
}

func parseFilters(c *fiber.Ctx) (models.UserFilters, error) {
	var filters models.UserFilters
	for key := range c.Queries() {
		if !allowedFilters[key] {
			return filters, fmt.Errorf("unknown filter %q", key)
		}
	}
	if v := c.Query("email"); v != "" {
		filters.Email = &v
	}
	if v := c.Query("firstName"); v != "" {
		filters.FirstName = &v
	}
	if v := c.Query("lastName"); v != "" {
		filters.LastName = &v
	}
	if v := c.Query("isActive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filters, fmt.Errorf("invalid isActive value %q", v)
		}
		filters.IsActive = &b
	}
	if v := c.Query("isAdmin"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filters, fmt.Errorf("invalid isAdmin value %q", v)
		}
		filters.IsAdmin = &b
	}
	return filters, nil
}

func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fmt.Sprintf("%s failed on the %s rule", fe.Field(), fe.Tag()))
	}
	return details
}
