package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/authservice/internal/account"
	"github.com/geocoder89/authservice/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Register(ctx context.Context, in account.RegisterInput) (account.AuthResponse, error)
	Login(ctx context.Context, in account.LoginInput) (account.AuthResponse, error)
	ChangePassword(ctx context.Context, in account.ChangePasswordInput) error
}

type AuthHandler struct {
	accounts AccountService
	timeout  time.Duration
}

func NewAuthHandler(accounts AccountService) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		timeout:  3 * time.Second,
	}
}

type RegisterRequest struct {
	Email           string `json:"email" binding:"required,email,max=254"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	Role            string `json:"role" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	resp, err := h.accounts.Register(cctx, account.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            req.Role,
		ClientIP:        ctx.ClientIP(),
	})
	if err != nil {
		RespondAccountError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, resp)
}

// POST /api/auth/login
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	resp, err := h.accounts.Login(cctx, account.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		ClientIP: ctx.ClientIP(),
	})
	if err != nil {
		RespondAccountError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

// POST /api/auth/change-password (authenticated)
func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	subject, ok := middlewares.SubjectFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	err := h.accounts.ChangePassword(cctx, account.ChangePasswordInput{
		Email:           subject,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
		ClientIP:        ctx.ClientIP(),
	})
	if err != nil {
		RespondAccountError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}
