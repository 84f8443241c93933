package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fieldlink/internal/accounts"
	"fieldlink/internal/appauth"
	"fieldlink/internal/httpapi"
	"fieldlink/internal/integration"
	"fieldlink/internal/rbac"
	"fieldlink/internal/reporting"
	"fieldlink/pkg/utils"
)

type routeDeps struct {
	Auth          *appauth.Manager
	Facade        *integration.Facade
	Records       accounts.RecordStore
	WebhookSecret string
	DB            *sql.DB
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	api := httpapi.Handlers{
		Auth:      deps.Auth,
		Reporting: reporting.NewService(deps.Records),
	}
	integ := integration.Handlers{
		Facade:        deps.Facade,
		WebhookSecret: deps.WebhookSecret,
	}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if deps.DB != nil {
			if err := utils.HealthCheck(c.Request.Context(), deps.DB, 2*time.Second); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// OAuth redirect target: the vendor sends the user here, so there is no
	// app session. The signed state is the only authentication.
	r.GET("/oauth/callback", integ.Callback)

	// Vendor webhooks (public, HMAC signature verified over the raw body).
	r.POST("/webhooks/vendor/events", integ.HandleInboundEvent)

	// protected API group
	v1 := r.Group("/v1")

	v1.POST("/auth/login", api.Login)

	authed := v1.Group("")
	authed.Use(appauth.RequireAccessToken(deps.Auth))
	authed.Use(rbac.RequireTenant())
	{
		authed.GET("/me", func(c *gin.Context) {
			uid, _ := appauth.UserID(c.Request.Context())
			tid, _ := appauth.TenantID(c.Request.Context())
			role, _ := appauth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "tenant_id": tid, "role": role})
		})

		// Integration lifecycle: only the owner manages the vendor connection.
		integrations := authed.Group("/integrations")
		integrations.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
		{
			integrations.POST("/:provider/connect", integ.Connect)
			integrations.GET("/:provider", integ.Status)
			integrations.DELETE("/:provider", integ.Disconnect)
		}

		// Communication data: front-office roles.
		comms := authed.Group("")
		comms.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleDispatcher, rbac.RoleTechnician, rbac.RoleSuperAdmin))
		{
			comms.GET("/calls", integ.Calls)
			comms.GET("/messages", integ.Messages)
			comms.POST("/messages/send", integ.SendMessage)
			comms.POST("/sync", integ.SyncNow)
		}

		// Reporting: bookkeepers get read-only aggregates.
		reports := authed.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleDispatcher, rbac.RoleBookkeeper, rbac.RoleSuperAdmin))
		{
			reports.GET("/calls-summary", api.CallsSummary)
			reports.GET("/messages-summary", api.MessagesSummary)
		}
	}
}
