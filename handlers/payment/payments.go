package payment

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/sahilchouksey/edu-materials-api/services"
	"github.com/sahilchouksey/edu-materials-api/utils/middleware"
	"github.com/sahilchouksey/edu-materials-api/utils/query"
	"github.com/sahilchouksey/edu-materials-api/utils/response"
	"github.com/sahilchouksey/edu-materials-api/utils/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultPageSize is the payment list page size when page_size is absent
const DefaultPageSize = 10

// PaymentHandler records and lists the caller's payments
type PaymentHandler struct {
	service   *services.PaymentService
	validator *validation.Validator
	log       *zap.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(db *gorm.DB, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:   services.NewPaymentService(db),
		validator: validation.NewValidator(),
		log:       log,
	}
}

// CreatePaymentRequest is the body of POST /users/payments/
type CreatePaymentRequest struct {
	CourseID      *uint   `json:"course_id"`
	LessonID      *uint   `json:"lesson_id"`
	Amount        float64 `json:"amount" validate:"required,gt=0,amount2dp"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=cash transfer"`
}

var paymentOrdering = map[string]string{
	"payment_date": "payment_date",
	"amount":       "amount",
}

// ListPayments handles GET /users/payments/
func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	page := query.ParsePage(c, DefaultPageSize)
	filter := services.PaymentFilter{
		Order:  query.Ordering(c, paymentOrdering, "payment_date DESC"),
		Offset: page.Offset(),
		Limit:  page.Size,
	}
	if id, ok := query.UintParam(c, "course_id"); ok {
		filter.CourseID = id
	}
	if id, ok := query.UintParam(c, "lesson_id"); ok {
		filter.LessonID = id
	}
	switch method := c.Query("payment_method"); method {
	case model.PaymentMethodCash, model.PaymentMethodTransfer:
		filter.PaymentMethod = method
	}

	payments, total, err := h.service.ListForUser(c.UserContext(), userID, filter)
	if err != nil {
		h.log.Error("failed to list payments", zap.Uint("user_id", userID), zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch payments")
	}

	return response.Paginated(c, payments, response.CalculatePagination(page.Number, page.Size, total))
}

// GetPayment handles GET /users/payments/:id/
func (h *PaymentHandler) GetPayment(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.NotFound(c, "Payment not found")
	}

	payment, err := h.service.Get(c.UserContext(), userID, uint(id))
	if err != nil {
		if errors.Is(err, services.ErrPaymentNotFound) {
			return response.NotFound(c, "Payment not found")
		}
		h.log.Error("failed to fetch payment", zap.Uint64("payment_id", id), zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch payment")
	}

	return response.Success(c, payment)
}

// CreatePayment handles POST /users/payments/
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.InvalidBody(c, err)
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	payment, err := h.service.Create(c.UserContext(), userID, services.CreatePaymentInput{
		CourseID:      req.CourseID,
		LessonID:      req.LessonID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPaymentTarget):
			return response.FieldError(c, "non_field_errors", "Exactly one of course_id or lesson_id must be set.")
		case errors.Is(err, services.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, services.ErrLessonNotFound):
			return response.NotFound(c, "Lesson not found")
		}
		h.log.Error("failed to create payment", zap.Uint("user_id", userID), zap.Error(err))
		return response.InternalServerError(c, "Failed to create payment")
	}

	return response.Created(c, payment)
}
