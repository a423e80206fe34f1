package app

import (
	"github.com/gin-gonic/gin"

	"github.com/tainamorais/clinica-agenda/internal/access"
	"github.com/tainamorais/clinica-agenda/internal/config"
)

// Router builds the gin engine with the middleware chain and every route.
func (a *App) Router(cfg *config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		RequestID(),
		Recovery(a.Logger),
		RequestLogger(a.Logger),
		SecurityHeaders(cfg.IsProduction()),
		CORS(cfg.CORSOrigins),
	)

	r.GET("/healthz", a.HealthHandler)
	// Google redirects the browser here, outside the API session.
	r.GET("/oauth2callback", a.OAuth2CallbackHandler)

	limited := r.Group("/api", RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, a.Logger))

	// cron trigger, authorized by its own secret
	limited.GET("/backup", a.BackupHandler)
	limited.POST("/backup", a.BackupHandler)

	api := limited.Group("", a.AuthMiddleware(cfg.SupabaseJWTSecret, cfg.StaticTokens))
	api.GET("/me", a.Me)

	read := api.Group("", Require(access.AgendaRead))
	{
		read.GET("/slots", a.GetSlotsHandler)
		read.GET("/agenda/day", a.DayAgendaHandler)
		read.GET("/agenda/week", a.WeekAgendaHandler)
		read.GET("/appointments", a.ListAppointmentsHandler)
		read.GET("/appointments/:id", a.GetAppointmentHandler)
		read.GET("/blocks", a.ListBlocksHandler)
		read.GET("/weekend-override", a.GetWeekendOverrideHandler)
	}

	appts := api.Group("/appointments", Require(access.AppointmentsWrite))
	{
		appts.POST("", a.CreateAppointmentHandler)
		appts.PUT("/:id", a.UpdateAppointmentHandler)
		appts.DELETE("/:id", a.CancelAppointmentHandler)
	}
	api.PATCH("/appointments/:id/paid", Require(access.PaymentsWrite), a.SetPaidHandler)

	patients := api.Group("/patients")
	{
		patients.GET("", Require(access.PatientsRead), a.ListPatientsHandler)
		patients.GET("/:id", Require(access.PatientsRead), a.GetPatientHandler)
		patients.GET("/:id/history", Require(access.PatientsRead), a.PatientHistoryHandler)
		patients.GET("/:id/last-medications", Require(access.PatientsRead), a.LastMedicationsHandler)
		patients.POST("", Require(access.PatientsCreate), a.CreatePatientHandler)
		patients.PUT("/:id", Require(access.PatientsEdit), a.UpdatePatientHandler)
		patients.DELETE("/:id", Require(access.PatientsCreate), a.DeletePatientHandler)
	}

	blocks := api.Group("", Require(access.BlocksWrite))
	{
		blocks.POST("/blocks", a.CreateBlockHandler)
		blocks.DELETE("/blocks/:id", a.DeleteBlockHandler)
		blocks.PUT("/weekend-override", a.SetWeekendOverrideHandler)
	}

	fin := api.Group("/finance", Require(access.FinanceRead))
	{
		fin.GET("", a.FinanceHandler)
		fin.GET("/export", a.FinanceExportHandler)
	}

	api.GET("/export", Require(access.DataExport), a.ExportHandler)

	users := api.Group("/users", Require(access.UsersManage))
	{
		users.GET("", a.ListUsersHandler)
		users.POST("", a.AddUserHandler)
		users.PATCH("/:email", a.UpdateUserRoleHandler)
		users.DELETE("/:email", a.RemoveUserHandler)
	}

	api.GET("/calendar/auth", Require(access.UsersManage), a.GoogleAuthHandler)

	return r
}
