package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartcampus/api/internal/service"
)

func (h HandlerSet) AdminStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "admin access granted",
	})
}

func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	page, err := h.admin.List(c.Request.Context(), queryInt(c, "page"), queryInt(c, "perPage"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	items := make([]userResponse, 0, len(page.Users))
	for _, user := range page.Users {
		items = append(items, toUserResponse(user))
	}

	c.JSON(http.StatusOK, gin.H{
		"users":   items,
		"page":    page.Page,
		"perPage": page.PerPage,
		"total":   page.Total,
	})
}

func (h HandlerSet) AdminCountUsers(c *gin.Context) {
	total, err := h.admin.Count(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totalUsers": total})
}

type editUserRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,max=64,personname"`
	LastName  *string `json:"lastName" binding:"omitempty,max=64,personname"`
	Email     *string `json:"email" binding:"omitempty,email,max=254"`
	Role      *string `json:"role"`
}

func (h HandlerSet) AdminUpdateUser(c *gin.Context) {
	var req editUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.admin.Update(c.Request.Context(), c.Param("id"), service.EditUserInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      req.Role,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": toUserResponse(user),
	})
}

func (h HandlerSet) AdminDeleteUser(c *gin.Context) {
	if err := h.admin.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
