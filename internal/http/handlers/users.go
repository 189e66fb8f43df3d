package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/geocoder89/authservice/internal/account"
	"github.com/geocoder89/authservice/internal/actorctx"
	"github.com/geocoder89/authservice/internal/domain/activity"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type UserDirectory interface {
	Me(ctx context.Context, email string) (user.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]user.User, error)
	ListLogs(ctx context.Context, filter activity.ListFilter) ([]activity.Log, error)
	UpdateStatus(ctx context.Context, id string, status user.Status, actor, clientIP string) (user.User, error)
}

type UsersHandler struct {
	dir UserDirectory
}

func NewUsersHandler(dir UserDirectory) *UsersHandler {
	return &UsersHandler{dir: dir}
}

// GET /api/users/me
func (h *UsersHandler) Me(ctx *gin.Context) {
	subject, ok := middlewares.SubjectFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.dir.Me(cctx, subject)
	if err != nil {
		RespondAccountError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

type AdminHandler struct {
	dir UserDirectory
}

func NewAdminHandler(dir UserDirectory) *AdminHandler {
	return &AdminHandler{dir: dir}
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}

	return n
}

func pageParams(ctx *gin.Context) (limit, offset int, ok bool) {
	limit = parseIntDefault(ctx.Query("limit"), 50)
	if limit < 1 || limit > 200 {
		RespondBadRequest(ctx, "limit must be between 1 and 200", nil)
		return 0, 0, false
	}

	offset = parseIntDefault(ctx.Query("offset"), 0)
	if offset < 0 {
		RespondBadRequest(ctx, "offset must be a non-negative integer", nil)
		return 0, 0, false
	}

	return limit, offset, true
}

// GET /api/admin/users?limit=50&offset=0
func (h *AdminHandler) ListUsers(ctx *gin.Context) {
	limit, offset, ok := pageParams(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	users, err := h.dir.ListUsers(cctx, limit, offset)
	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":  users,
		"limit":  limit,
		"offset": offset,
	})
}

// PUT /api/admin/users/:id/status
func (h *AdminHandler) UpdateStatus(ctx *gin.Context) {
	var req user.UpdateStatusRequest

	if !BindJSON(ctx, &req) {
		return
	}

	status, err := user.ParseStatus(req.Status)
	if err != nil {
		RespondBadRequest(ctx, "Unknown status", nil)
		return
	}

	actor, _ := middlewares.SubjectFromContext(ctx)

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	updated, err := h.dir.UpdateStatus(cctx, ctx.Param("id"), status, actor, actorctx.ClientIPFrom(ctx.Request.Context()))
	if err != nil {
		if errors.Is(err, account.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not update user status")
		return
	}

	ctx.JSON(http.StatusOK, updated)
}

// GET /api/admin/logs?userId=&limit=&offset=
func (h *AdminHandler) ListLogs(ctx *gin.Context) {
	limit, offset, ok := pageParams(ctx)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	logs, err := h.dir.ListLogs(cctx, activity.ListFilter{
		UserID: ctx.Query("userId"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		RespondInternal(ctx, "Could not list activity logs")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":  logs,
		"limit":  limit,
		"offset": offset,
	})
}
