package auth

import (
	"context"
	"time"

	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/sahilchouksey/edu-materials-api/services/storage"
	authutil "github.com/sahilchouksey/edu-materials-api/utils/auth"
	"github.com/sahilchouksey/edu-materials-api/utils/middleware"
	"github.com/sahilchouksey/edu-materials-api/utils/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WelcomeMailer greets newly registered users
type WelcomeMailer interface {
	SendWelcomeEmail(ctx context.Context, toEmail, firstName string) error
}

// AuthHandler handles registration, tokens and the caller's own profile
type AuthHandler struct {
	db                   *gorm.DB
	jwtManager           *authutil.JWTManager
	blacklistService     *authutil.BlacklistService
	bruteForceProtection *middleware.BruteForceProtection
	mailer               WelcomeMailer
	avatars              storage.AvatarStore
	validator            *validation.Validator
	log                  *zap.Logger
}

// Options carries the optional collaborators of AuthHandler
type Options struct {
	BruteForce *middleware.BruteForceProtection
	Mailer     WelcomeMailer
	Avatars    storage.AvatarStore
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, jwtManager *authutil.JWTManager, log *zap.Logger, opts Options) *AuthHandler {
	return &AuthHandler{
		db:                   db,
		jwtManager:           jwtManager,
		blacklistService:     authutil.NewBlacklistService(db),
		bruteForceProtection: opts.BruteForce,
		mailer:               opts.Mailer,
		avatars:              opts.Avatars,
		validator:            validation.NewValidator(),
		log:                  log,
	}
}

// UserResponse represents user data in responses
type UserResponse struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       string     `json:"phone"`
	City        string     `json:"city"`
	AvatarURL   string     `json:"avatar_url"`
	IsActive    bool       `json:"is_active"`
	IsStaff     bool       `json:"is_staff"`
	IsSuperuser bool       `json:"is_superuser"`
	Groups      []string   `json:"groups"`
	LastLogin   *time.Time `json:"last_login"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewUserResponse maps a user, with its groups loaded, to the response shape
func NewUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		City:        u.City,
		AvatarURL:   u.AvatarURL,
		IsActive:    u.IsActive,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		Groups:      u.GroupNames(),
		LastLogin:   u.LastLogin,
		CreatedAt:   u.CreatedAt,
	}
}
