package handlers

import (
	"github.com/gin-gonic/gin"

	"visittrack/api/middleware"
	"visittrack/api/utils"
)

type RouterConfig struct {
	Auth     *AuthHandlers
	Visits   *VisitHandlers
	Stats    *StatsHandlers // nil when ClickHouse is not configured
	Tokens   *utils.TokenIssuer
	APIKey   string
	FEOrigin string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORSMiddleware(cfg.FEOrigin))

	api := r.Group("/api")
	{
		if cfg.Auth != nil {
			api.POST("/signup", cfg.Auth.Signup)
			api.POST("/login", cfg.Auth.Login)
			api.POST("/logout", cfg.Auth.Logout)
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthRequired(cfg.Tokens, cfg.APIKey))
		{
			visits := protected.Group("/visits")
			{
				visits.POST("/start", cfg.Visits.StartVisit)
				visits.POST("/actions", cfg.Visits.RecordAction)
				visits.POST("/finalize", cfg.Visits.Finalize)
				visits.POST("/lifecycle", cfg.Visits.Lifecycle)
				visits.GET("/current", cfg.Visits.Current)
				visits.GET("/history", cfg.Visits.History)
				visits.GET("/report", cfg.Visits.Report)
			}

			protected.POST("/salesperson/bind", cfg.Visits.BindSalesperson)
			protected.DELETE("/salesperson/bind", cfg.Visits.UnbindSalesperson)
			protected.GET("/notifications/ws", cfg.Visits.Notifications)

			if cfg.Stats != nil {
				stats := protected.Group("/stats")
				{
					stats.GET("/visit-counts", cfg.Stats.GetVisitCountsOverTime)
					stats.GET("/average-duration", cfg.Stats.GetAverageVisitDuration)
					stats.GET("/unique-viewers", cfg.Stats.GetUniqueViewersOverTime)
					stats.GET("/top-listings", cfg.Stats.GetTopListings)
				}
			}
		}
	}

	return r
}
