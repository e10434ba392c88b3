package controllers

import (
	"net/http"
	"strconv"

	"github.com/anisha-singhal/Lumera-sub000/services"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// bindJSON binds the body into dst, answering 400 itself on failure.
func bindJSON(ctx *gin.Context, dst any) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return false
	}
	return true
}

func writeServiceError(ctx *gin.Context, svcErr *services.ServiceError) {
	_ = ctx.Error(svcErr)
	ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
}

// parsePaginationParams reads page and limit, falling back to defaults on
// anything unparsable and capping limit.
func parsePaginationParams(ctx *gin.Context) (page, limit int) {
	page, limit = 1, defaultPageLimit
	if p, err := strconv.Atoi(ctx.Query("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(ctx.Query("limit")); err == nil && l > 0 {
		limit = min(l, maxPageLimit)
	}
	return page, limit
}

func pageMeta(page, limit int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"limit":       limit,
		"total":       total,
		"total_pages": (total + int64(limit) - 1) / int64(limit),
		"has_more":    total > int64(page*limit),
	}
}
