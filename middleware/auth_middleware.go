package middleware

import (
	"log"
	"net/http"
	"strings"

	"visittrack/api/utils"

	"github.com/gin-gonic/gin"
)

const (
	CtxSalespersonID    = "salesperson_id"
	CtxSalespersonEmail = "salesperson_email"
)

// AuthRequired accepts either the service API key (page integrations) or a
// salesperson JWT from the jwt_token cookie or a Bearer header.
func AuthRequired(tokens *utils.TokenIssuer, apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey != "" && c.GetHeader("X-API-KEY") == apiKey {
			c.Next()
			return
		}

		var candidates []string
		if cookie, err := c.Cookie("jwt_token"); err == nil && cookie != "" {
			candidates = append(candidates, cookie)
		}
		if bearer := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "); bearer != "" {
			candidates = append(candidates, bearer)
		}
		if len(candidates) == 0 {
			log.Println("AuthRequired: No JWT token found in cookie or header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: No token provided"})
			return
		}

		// A stale cookie must not shadow a valid Authorization header.
		var (
			claims *utils.Claims
			err    error
		)
		for _, tokenString := range candidates {
			if claims, err = tokens.ValidateJWT(tokenString); err == nil {
				break
			}
		}
		if err != nil {
			log.Printf("AuthRequired: Invalid JWT token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid or expired token"})
			return
		}

		c.Set(CtxSalespersonID, claims.SalespersonID)
		c.Set(CtxSalespersonEmail, claims.Email)
		c.Next()
	}
}

// SalespersonID returns the authenticated salesperson, if the request
// carried a JWT rather than the API key.
func SalespersonID(c *gin.Context) (int, bool) {
	v, ok := c.Get(CtxSalespersonID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}
