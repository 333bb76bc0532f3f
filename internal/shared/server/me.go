package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tuning-backend/internal/shared/auth"
	"tuning-backend/internal/shared/server/middleware"
	"tuning-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint, which reports whether the caller may review.
func registerMeRoutes(rg *gin.RouterGroup, reviewerRole string) {
	rg.GET("/me", func(c *gin.Context) {
		userID := middleware.UserIDFromContext(c)
		if userID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		roles := middleware.RolesFromContext(c)
		claims := auth.Claims{Sub: userID, Roles: roles}

		response := gin.H{
			"userId":    userID,
			"isGuest":   middleware.IsGuest(c),
			"roles":     roles,
			"canReview": !middleware.IsGuest(c) && claims.HasRole(reviewerRole),
		}
		if email := middleware.UserEmailFromContext(c); email != "" {
			response["email"] = email
		}
		respond.OK(c, response)
	})
}
