package router

import (
	"valeria/config"
	"valeria/controllers"
	"valeria/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Initialize wires all routes and middlewares.
// Public routes + authenticated routes + "validated" routes (Authorizer).
func Initialize(r *gin.Engine, cfg config.Configuration) {
	_ = cfg

	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")

	// Webhook (WhatsApp Cloud API). O tenant é resolvido pelo
	// metadata.phone_number_id do payload, então a rota é única.
	api.GET("/webhook", controllers.WebhookVerify)
	api.POST("/webhook", controllers.WebhookUpdate)

	// Public (no auth)
	api.POST("/login", Logger(), controllers.Login)
	api.POST("/refresh", Logger(), controllers.Refresh)

	// Authenticated routes (token required)
	auth := api.Group("")
	auth.Use(controllers.AuthRequired())

	// Validated routes (token + active client)
	validated := auth.Group("")
	validated.Use(Authorizer())

	validated.GET("/me", Logger(), controllers.Me)

	// Tenant self-service
	validated.PUT("/client/config", Logger(), controllers.UpdateClientConfig)
	validated.PUT("/client/whatsapp-credentials", Logger(), controllers.UpsertWhatsAppCredentials)

	// Customers (tenant)
	validated.GET("/customers", Logger(), controllers.GetCustomers)
	validated.GET("/customers/:id", Logger(), controllers.GetCustomerByID)
	validated.POST("/customers", Logger(), controllers.CreateCustomer)
	validated.PUT("/customers/:id", Logger(), controllers.UpdateCustomer)

	// Appointments (tenant)
	validated.GET("/appointments", Logger(), controllers.GetAppointments)
	validated.POST("/appointments", Logger(), controllers.CreateAppointment)
	validated.PUT("/appointments/:id/status", Logger(), controllers.UpdateAppointmentStatus)

	// Conversations (tenant)
	validated.GET("/conversations", Logger(), controllers.ListConversations)
	validated.GET("/conversations/:customerId/history", Logger(), controllers.GetConversationHistory)
	validated.POST("/conversations/:customerId/take", Logger(), controllers.TakeConversation)
	validated.POST("/conversations/:customerId/send-message", Logger(), controllers.SendHumanMessage)
	validated.POST("/conversations/:customerId/escalate", Logger(), controllers.EscalateConversation)
	validated.POST("/conversations/:customerId/resolve", Logger(), controllers.ResolveConversation)

	// Dashboard (tenant)
	validated.GET("/dashboard/processed-per-day", Logger(), controllers.GetProcessedPerDay)
	validated.GET("/dashboard/monthly-usage", Logger(), controllers.GetMonthlyUsage)
	validated.GET("/dashboard/events", Logger(), controllers.GetDashboardEvents)

	// Admin routes
	admin := validated.Group("")
	admin.Use(Adminizer())

	// Clients CRUD (admin)
	admin.GET("/clients", Logger(), controllers.GetClients)
	admin.GET("/clients/:id", Logger(), controllers.GetClientByID)
	admin.POST("/clients", Logger(), controllers.CreateClient)
	admin.PUT("/clients/:id", Logger(), controllers.UpdateClient)
	admin.DELETE("/clients/:id", Logger(), controllers.DeleteClient)
	admin.POST("/clients/:id/impersonate", Logger(), controllers.ImpersonateClient)

	// Events (admin)
	admin.GET("/events", Logger(), controllers.GetEvents)
	admin.GET("/events/:id", Logger(), controllers.GetEventByID)

	log.Info().Msg("routes initialized")
}
