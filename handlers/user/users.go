package user

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/handlers/auth"
	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/sahilchouksey/edu-materials-api/services/policy"
	"github.com/sahilchouksey/edu-materials-api/utils/middleware"
	"github.com/sahilchouksey/edu-materials-api/utils/query"
	"github.com/sahilchouksey/edu-materials-api/utils/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultPageSize is the user list page size when page_size is absent
const DefaultPageSize = 10

// UserHandler exposes the user directory
type UserHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(db *gorm.DB, log *zap.Logger) *UserHandler {
	return &UserHandler{db: db, log: log}
}

var userOrdering = map[string]string{
	"email":      "users.email",
	"created_at": "users.created_at",
	"last_login": "users.last_login",
}

// scoped limits non-superusers to their own row
func scoped(db *gorm.DB, p policy.Principal) *gorm.DB {
	if p.Has(policy.RoleSuperuser) {
		return db
	}
	return db.Where("users.id = ?", p.UserID)
}

// ListUsers handles GET /users/
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)
	page := query.ParsePage(c, DefaultPageSize)

	q := scoped(h.db.WithContext(c.UserContext()).Model(&model.User{}), p)
	if term := query.Search(c); term != "" {
		pattern := query.LikePattern(term)
		q = q.Where("LOWER(users.email) LIKE ? OR LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ?",
			pattern, pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		h.log.Error("failed to count users", zap.Error(err))
		return response.InternalServerError(c, "Failed to count users")
	}

	var users []model.User
	if err := q.Preload("Groups").
		Order(query.Ordering(c, userOrdering, "users.id ASC")).
		Limit(page.Size).
		Offset(page.Offset()).
		Find(&users).Error; err != nil {
		h.log.Error("failed to fetch users", zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch users")
	}

	items := make([]auth.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, auth.NewUserResponse(&users[i]))
	}

	return response.Paginated(c, items, response.CalculatePagination(page.Number, page.Size, total))
}

// GetUser handles GET /users/:id/
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	p := middleware.GetPrincipal(c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return response.NotFound(c, "User not found")
	}

	var user model.User
	err = scoped(h.db.WithContext(c.UserContext()), p).
		Preload("Groups").
		First(&user, uint(id)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "User not found")
		}
		h.log.Error("failed to fetch user", zap.Uint64("user_id", id), zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch user")
	}

	return response.Success(c, auth.NewUserResponse(&user))
}
