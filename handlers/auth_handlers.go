package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"visittrack/api/models"
	"visittrack/api/store"
	"visittrack/api/utils"
)

const tokenCookie = "jwt_token"

// SalespersonRepository is the account storage the auth handlers need.
type SalespersonRepository interface {
	CreateSalesperson(ctx context.Context, email, name string, hashedPassword []byte) (*models.Salesperson, error)
	GetSalespersonByEmail(ctx context.Context, email string) (*models.Salesperson, error)
}

type AuthHandlers struct {
	Salespeople SalespersonRepository
	Tokens      *utils.TokenIssuer
}

func NewAuthHandlers(repo SalespersonRepository, tokens *utils.TokenIssuer) *AuthHandlers {
	return &AuthHandlers{Salespeople: repo, Tokens: tokens}
}

func (h *AuthHandlers) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: Failed to hash password for %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	sp, err := h.Salespeople.CreateSalesperson(c.Request.Context(), req.Email, req.Name, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrSalespersonExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Salesperson with this email already exists"})
			return
		}
		log.Printf("ERROR: Failed to create salesperson %s: %v", req.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register salesperson"})
		return
	}

	log.Printf("Salesperson registered: ID=%d, Email=%s", sp.ID, sp.Email)
	c.JSON(http.StatusCreated, gin.H{"message": "Salesperson registered successfully", "email": sp.Email, "id": sp.ID})
}

// Login checks credentials and sets the JWT cookie.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	sp, err := h.Salespeople.GetSalespersonByEmail(c.Request.Context(), req.Email)
	if err != nil {
		log.Printf("Login failed for email %s: %v", req.Email, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword(sp.HashedPassword, []byte(req.Password)); err != nil {
		log.Printf("Login failed for email %s: password mismatch", req.Email)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	tokenString, err := h.Tokens.GenerateJWT(sp)
	if err != nil {
		log.Printf("ERROR: Failed to generate JWT for salesperson %d: %v", sp.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authentication token"})
		return
	}

	c.SetCookie(tokenCookie, tokenString, 3600, "/", "", false, true)

	log.Printf("Salesperson logged in: ID=%d, Email=%s", sp.ID, sp.Email)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"email":   sp.Email,
		"token":   tokenString,
	})
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetCookie(tokenCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
