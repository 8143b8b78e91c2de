package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/utils/response"
	"go.uber.org/zap"
)

// BodyLimit leaves room for a 5 MB avatar plus multipart overhead
const BodyLimit = 6 * 1024 * 1024

type APIServer struct {
	app           *fiber.App
	listenAddress string
	log           *zap.Logger
}

// NewApp builds the fiber app with the shared error handler
func NewApp(log *zap.Logger) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:       "edu-materials-api",
		BodyLimit:     BodyLimit,
		StrictRouting: false,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return response.Error(c, fe.Code, fe.Message, "HTTP_ERROR")
			}
			log.Error("unhandled request error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
			return response.InternalServerError(c, "")
		},
	})
}

func NewAPIServer(listenAddress string, log *zap.Logger) *APIServer {
	return &APIServer{
		app:           NewApp(log),
		listenAddress: listenAddress,
		log:           log,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	s.log.Info("starting API server", zap.String("address", s.listenAddress))
	return s.app.Listen(s.listenAddress)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}
