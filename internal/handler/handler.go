// Package handler exposes the services over HTTP under /api/v1.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simplesconnect/simples-connect/internal/app"
	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
	"github.com/simplesconnect/simples-connect/internal/middleware"
	"github.com/simplesconnect/simples-connect/internal/response"
	"github.com/simplesconnect/simples-connect/internal/service/admin"
	"github.com/simplesconnect/simples-connect/internal/service/conversation"
	"github.com/simplesconnect/simples-connect/internal/service/explore"
	"github.com/simplesconnect/simples-connect/internal/service/matching"
)

// Handler holds the services behind the HTTP routes.
type Handler struct {
	appCtx       *app.AppContext
	authn        middleware.Authenticator
	limiter      *middleware.LimiterStore
	explore      *explore.Service
	matching     *matching.Service
	conversation *conversation.Service
	admin        *admin.Service
}

// New wires every service from appCtx. The limiter may be nil to disable rate limiting.
func New(
	appCtx *app.AppContext,
	authn middleware.Authenticator,
	limiter *middleware.LimiterStore,
	opts ...conversation.Option,
) *Handler {
	matcher := matching.NewMatchingService(appCtx)
	return &Handler{
		appCtx:       appCtx,
		authn:        authn,
		limiter:      limiter,
		explore:      explore.NewExploreService(appCtx, matcher),
		matching:     matcher,
		conversation: conversation.NewConversationService(appCtx, opts...),
		admin:        admin.NewAdminService(appCtx, authn),
	}
}

// Register mounts /healthz and the authenticated /api/v1 routes.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)

	v1 := r.Group("/api/v1", middleware.RequireAuth(h.authn))

	v1.POST("/interactions", h.limited(h.recordInteraction)...)

	v1.GET("/matches", h.listMatches)
	v1.POST("/matches/:id/unmatch", h.unmatch)
	v1.GET("/matches/:id/messages", h.listMessages)
	v1.POST("/matches/:id/messages", h.limited(h.sendMessage)...)
	v1.POST("/matches/:id/read", h.markRead)

	v1.GET("/conversations", h.listConversations)

	v1.GET("/likes", h.listLikedYou)
	v1.GET("/likes/new", h.listNewLikedYou)
	v1.GET("/likes/count", h.countLikedYou)

	v1.GET("/admin/stats", middleware.RequireAdmin(h.authn), h.stats)
}

// limited prepends the per-user rate limiter when one is configured.
func (h *Handler) limited(handler gin.HandlerFunc) []gin.HandlerFunc {
	if h.limiter == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{middleware.RateLimit(h.limiter), handler}
}

type interactionRequest struct {
	TargetID string `json:"target_id"`
	Kind     string `json:"kind"`
}

type messageRequest struct {
	Content string `json:"content"`
	Kind    string `json:"kind"`
}

func (h *Handler) recordInteraction(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, svcErr.InvalidArgument("body must be a JSON object with target_id and kind"))
		return
	}
	res, err := h.explore.RecordInteraction(c.Request.Context(), middleware.GetUserID(c), req.TargetID, req.Kind)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, res)
}

func (h *Handler) listMatches(c *gin.Context) {
	views, err := h.matching.ListMatches(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, views)
}

func (h *Handler) unmatch(c *gin.Context) {
	m, err := h.matching.Unmatch(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, m)
}

func (h *Handler) listConversations(c *gin.Context) {
	list, err := h.conversation.ListConversations(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, list)
}

func (h *Handler) listMessages(c *gin.Context) {
	msgs, err := h.conversation.ListMessages(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		response.Fail(c, gated(err))
		return
	}
	response.OK(c, msgs)
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, svcErr.InvalidArgument("body must be a JSON object with content"))
		return
	}
	msg, err := h.conversation.SendMessage(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), req.Content, req.Kind)
	if err != nil {
		response.Fail(c, gated(err))
		return
	}
	response.OK(c, msg)
}

func (h *Handler) markRead(c *gin.Context) {
	n, err := h.conversation.MarkRead(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		response.Fail(c, gated(err))
		return
	}
	response.OK(c, gin.H{"count": n})
}

func (h *Handler) listLikedYou(c *gin.Context) {
	page, err := h.explore.ListLikedYou(c.Request.Context(), middleware.GetUserID(c), tokenParam(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, page)
}

func (h *Handler) listNewLikedYou(c *gin.Context) {
	page, err := h.explore.ListNewLikedYou(c.Request.Context(), middleware.GetUserID(c), tokenParam(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, page)
}

func (h *Handler) countLikedYou(c *gin.Context) {
	n, err := h.explore.CountLikedYou(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"count": n})
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.admin.Stats(c.Request.Context(), middleware.GetIdentity(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, st)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok", "redis": "ok"}
	healthy := true

	if sqlDB, err := h.appCtx.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unavailable"
		healthy = false
	}
	if h.appCtx.RedisCache != nil {
		if err := h.appCtx.RedisCache.Ping(ctx); err != nil {
			checks["redis"] = "unavailable"
			healthy = false
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, response.Envelope{
			Data:  checks,
			Error: &response.Error{Code: "UNAVAILABLE", Message: "dependency check failed"},
		})
		return
	}
	response.OK(c, checks)
}

// gated collapses missing, inactive and foreign matches into one 403 for the
// conversation endpoints.
func gated(err error) error {
	if errors.Is(err, svcErr.ErrNotFound) || errors.Is(err, svcErr.ErrForbidden) {
		return svcErr.Forbidden("conversation not available")
	}
	return err
}

func tokenParam(c *gin.Context) *string {
	t := strings.TrimSpace(c.Query("pagination_token"))
	if t == "" {
		return nil
	}
	return &t
}
