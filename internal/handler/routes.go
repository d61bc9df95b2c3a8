package handler

import (
	"github.com/innovators/mlms/mlms-backend/internal/middleware"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

// Handlers groups every HTTP handler the API serves
type Handlers struct {
	Schedule  *ScheduleHandler
	Client    *ClientHandler
	Loan      *LoanHandler
	Session   *SessionHandler
	Advice    *AdviceHandler
	WebSocket *WebSocketHandler
	Swagger   *SwaggerHandler
}

// RegisterRoutes sets up all API routes. adviceLimiter throttles the AI-backed endpoints.
func RegisterRoutes(e *echo.Echo, h Handlers, adviceLimiter *middleware.RateLimiter) {
	// API documentation
	e.GET("/openapi.json", h.Swagger.ServeOpenAPI3Spec)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Realtime events
	e.GET("/ws", h.WebSocket.HandleWS)

	// API version 1
	api := e.Group("/api/v1")

	// Schedule routes
	api.POST("/schedules/preview", h.Schedule.PreviewSchedule)

	// Client routes
	clients := api.Group("/clients")
	clients.POST("", h.Client.CreateClient)
	clients.GET("", h.Client.GetClients)
	clients.GET("/:id", h.Client.GetClient)
	clients.POST("/:id/risk-score", h.Client.ScoreClient)
	clients.POST("/:id/cnic-document", h.Client.UploadCNICDocument)
	clients.GET("/:id/cnic-document", h.Client.GetCNICDocument)

	// Loan routes
	loans := api.Group("/loans")
	loans.POST("", h.Loan.CreateLoan)
	loans.GET("", h.Loan.GetLoans)
	loans.GET("/:id", h.Loan.GetLoan)
	loans.PATCH("/:id/status", h.Loan.UpdateLoanStatus)
	loans.GET("/:id/schedule", h.Loan.GetSchedule)
	loans.GET("/:id/schedule/export", h.Loan.ExportSchedule)

	// Form session routes
	sessions := api.Group("/sessions")
	sessions.POST("", h.Session.CreateSession)
	sessions.GET("/:id", h.Session.GetSession)
	sessions.DELETE("/:id", h.Session.DeleteSession)
	sessions.PUT("/:id/view", h.Session.SetView)
	sessions.PUT("/:id/fields", h.Session.SetFields)
	sessions.POST("/:id/fees", h.Session.AddFee)
	sessions.DELETE("/:id/fees/:feeId", h.Session.RemoveFee)
	sessions.GET("/:id/schedule", h.Session.PreviewSchedule)
	sessions.POST("/:id/risk-score", h.Session.RequestRiskScore)
	sessions.POST("/:id/submit", h.Session.Submit)
	sessions.POST("/:id/cancel", h.Session.Cancel)

	// AI advice routes (rate limited)
	advice := api.Group("/advice")
	if adviceLimiter != nil {
		advice.Use(middleware.RateLimitMiddleware(adviceLimiter))
	}
	advice.GET("/suggestions", h.Advice.GetSuggestions)
	advice.GET("/clients/:id/risk-explanation", h.Advice.GetRiskExplanation)
}
