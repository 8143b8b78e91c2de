package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/handlers"
	auth_handlers "github.com/sahilchouksey/edu-materials-api/handlers/auth"
	course_handlers "github.com/sahilchouksey/edu-materials-api/handlers/course"
	lesson_handlers "github.com/sahilchouksey/edu-materials-api/handlers/lesson"
	payment_handlers "github.com/sahilchouksey/edu-materials-api/handlers/payment"
	subscription_handlers "github.com/sahilchouksey/edu-materials-api/handlers/subscription"
	user_handlers "github.com/sahilchouksey/edu-materials-api/handlers/user"
	"github.com/sahilchouksey/edu-materials-api/services"
	"github.com/sahilchouksey/edu-materials-api/services/notify"
	"github.com/sahilchouksey/edu-materials-api/services/storage"
	"github.com/sahilchouksey/edu-materials-api/utils/auth"
	"github.com/sahilchouksey/edu-materials-api/utils/cache"
	"github.com/sahilchouksey/edu-materials-api/utils/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the collaborators the routes are built from. Cache, Dispatcher,
// Mailer and Avatars are optional.
type Deps struct {
	DB         *gorm.DB
	Log        *zap.Logger
	JWT        *auth.JWTManager
	Health     handlers.HealthChecker
	Cache      *cache.RedisCache
	Dispatcher *notify.Dispatcher
	Mailer     *services.EmailService
	Avatars    storage.AvatarStore
}

func SetupRoutes(app *fiber.App, deps Deps) {
	db := deps.DB
	log := deps.Log

	// Brute force protection needs redis
	var bruteForceProtection *middleware.BruteForceProtection
	if deps.Cache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(deps.Cache)
	}

	authMiddleware := middleware.NewAuthMiddleware(deps.JWT, db, log)

	opts := auth_handlers.Options{
		BruteForce: bruteForceProtection,
		Avatars:    deps.Avatars,
	}
	if deps.Mailer != nil {
		opts.Mailer = deps.Mailer
	}
	authHandler := auth_handlers.NewAuthHandler(db, deps.JWT, log, opts)
	userHandler := user_handlers.NewUserHandler(db, log)
	paymentHandler := payment_handlers.NewPaymentHandler(db, log)
	subscriptionHandler := subscription_handlers.NewSubscriptionHandler(db, log)

	var courseNotifier course_handlers.Notifier
	var lessonNotifier lesson_handlers.Notifier
	if deps.Dispatcher != nil {
		courseNotifier = deps.Dispatcher
		lessonNotifier = deps.Dispatcher
	}
	courseHandler := course_handlers.NewCourseHandler(db, courseNotifier, log)
	lessonHandler := lesson_handlers.NewLessonHandler(db, lessonNotifier, log)

	// Health check endpoint (public)
	if deps.Health != nil {
		app.Get("/ping", handlers.HandleCheckHealth(deps.Health))
	}

	// API v1 group
	api := app.Group("/api/v1")

	// Users: registration and tokens are public
	users := api.Group("/users")
	users.Post("/register", authHandler.Register)
	users.Post("/token", bruteForceProtection.CheckLockout(), authHandler.Token)
	users.Post("/token/refresh", authHandler.Refresh)

	users.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	users.Get("/profile", authMiddleware.Required(), authHandler.Profile)
	users.Patch("/profile", authMiddleware.Required(), authHandler.UpdateProfile)
	users.Post("/profile/avatar", authMiddleware.Required(), authHandler.UploadAvatar)

	// Payments are registered before /:id
	payments := users.Group("/payments", authMiddleware.Required())
	payments.Get("/", paymentHandler.ListPayments)
	payments.Post("/", paymentHandler.CreatePayment)
	payments.Get("/:id", paymentHandler.GetPayment)

	users.Get("/", authMiddleware.Required(), userHandler.ListUsers)
	users.Get("/:id", authMiddleware.Required(), userHandler.GetUser)

	// Materials: everything requires authentication
	materials := api.Group("/materials", authMiddleware.Required())

	courses := materials.Group("/courses")
	courses.Get("/", courseHandler.ListCourses)
	courses.Post("/", courseHandler.CreateCourse)
	courses.Get("/:id", courseHandler.GetCourse)
	courses.Put("/:id", courseHandler.UpdateCourse)
	courses.Patch("/:id", courseHandler.PatchCourse)
	courses.Delete("/:id", courseHandler.DeleteCourse)

	lessons := materials.Group("/lessons")
	lessons.Get("/", lessonHandler.ListLessons)
	lessons.Post("/", lessonHandler.CreateLesson)
	lessons.Get("/:id", lessonHandler.GetLesson)
	lessons.Put("/:id", lessonHandler.UpdateLesson)
	lessons.Patch("/:id", lessonHandler.PatchLesson)
	lessons.Delete("/:id", lessonHandler.DeleteLesson)

	subscriptions := materials.Group("/subscription")
	subscriptions.Get("/", subscriptionHandler.List)
	subscriptions.Post("/", subscriptionHandler.Toggle)
}
