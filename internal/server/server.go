package server

import (
	"healing-commerce/internal/handler"
	custommw "healing-commerce/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo            *echo.Echo
	checkoutHandler *handler.CheckoutHandler
	payosHandler    *handler.PayOSHandler
	stripeHandler   *handler.StripeHandler
	accountHandler  *handler.AccountHandler
	debugHandler    *handler.DebugHandler
}

func NewServer(
	jwtSecret string,
	checkoutHandler *handler.CheckoutHandler,
	payosHandler *handler.PayOSHandler,
	stripeHandler *handler.StripeHandler,
	accountHandler *handler.AccountHandler,
	debugHandler *handler.DebugHandler,
	logger *zap.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(custommw.Auth(jwtSecret))

	s := &Server{
		echo:            e,
		checkoutHandler: checkoutHandler,
		payosHandler:    payosHandler,
		stripeHandler:   stripeHandler,
		accountHandler:  accountHandler,
		debugHandler:    debugHandler,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	api.POST("/checkout", s.checkoutHandler.Checkout)

	// -------- payos webhooks / callbacks --------
	payos := api.Group("/payos")
	payos.POST("/webhook", s.payosHandler.Webhook)
	payos.GET("/callback", s.payosHandler.Callback)
	payos.POST("/reconcile", s.payosHandler.Reconcile)
	payos.GET("/status", s.payosHandler.Status)
	payos.GET("/accounts", s.payosHandler.Accounts)
	payos.POST("/setup-webhook", s.payosHandler.SetupWebhook)

	// -------- stripe webhooks --------
	api.POST("/stripe/webhook", s.stripeHandler.Webhook)

	// -------- account --------
	account := api.Group("/account")
	account.GET("/entitlements", s.accountHandler.Entitlements, custommw.RequireAuth)
	account.POST("/claim", s.accountHandler.Claim, custommw.RequireAuth)

	api.GET("/orders/debug", s.debugHandler.Orders)
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
