// Package api registers the HTTP surface of the backend.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/syncforge/syncforge/internal/config"
	"github.com/syncforge/syncforge/internal/http/api/handlers"
	"github.com/syncforge/syncforge/internal/mapping"
	"github.com/syncforge/syncforge/internal/models"
	"github.com/syncforge/syncforge/internal/secretstore"
	"github.com/syncforge/syncforge/internal/security"
	"gorm.io/gorm"
)

// Deps carries everything the route handlers need.
type Deps struct {
	DB            *gorm.DB
	JWT           config.JWTConfig
	Secrets       secretstore.Store
	Mappings      *mapping.Service
	GitHubBaseURL string
}

// RegisterRoutes registers public and authenticated routes under /api.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Check)

	root := r.Group("/api")

	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWT)
	root.POST("/auth/register", authHandler.Register)
	root.POST("/auth/login", authHandler.Login)

	authed := root.Group("")
	authed.Use(userAuthMiddleware(deps.DB, deps.JWT))

	profileHandler := handlers.NewProfileHandler(deps.DB)
	authed.GET("/me", profileHandler.Get)
	authed.PUT("/me", profileHandler.Update)
	authed.PUT("/me/password", profileHandler.ChangePassword)

	settingsHandler := handlers.NewSettingsHandler(deps.DB)
	authed.GET("/settings", settingsHandler.Get)
	authed.PUT("/settings", settingsHandler.Update)

	integrationsHandler := handlers.NewIntegrationsHandler(deps.DB, deps.Secrets)
	authed.GET("/integrations", integrationsHandler.List)
	authed.DELETE("/integrations/:id", integrationsHandler.Delete)

	githubHandler := handlers.NewGitHubHandler(deps.DB, deps.Secrets, deps.GitHubBaseURL)
	authed.POST("/integrations/github", githubHandler.Connect)
	authed.GET("/github/repos", githubHandler.Repos)
	authed.GET("/github/repos/:owner/:repo", githubHandler.Repo)

	servicenowHandler := handlers.NewServiceNowHandler(deps.DB, deps.Secrets)
	authed.POST("/integrations/servicenow", servicenowHandler.Connect)
	authed.GET("/servicenow/tables", servicenowHandler.Tables)
	authed.GET("/servicenow/tables/:table/fields", servicenowHandler.Fields)
	authed.POST("/servicenow/tables/:table/records", servicenowHandler.CreateRecord)
	authed.PATCH("/servicenow/tables/:table/records/:sys_id", servicenowHandler.UpdateRecord)

	mappingsHandler := handlers.NewMappingsHandler(deps.Mappings)
	authed.POST("/mappings", mappingsHandler.Create)
	authed.GET("/mappings", mappingsHandler.List)
	authed.POST("/mappings/validate", mappingsHandler.Validate)
	authed.POST("/mappings/auto", mappingsHandler.Auto)
}

// userAuthMiddleware validates user JWTs and loads the user into context.
func userAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Next()
	}
}
