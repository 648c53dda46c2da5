package server

import (
	"net/http"

	workspacedomain "github.com/docuspace/docuspace/internal/workspace/domain"
	"github.com/gin-gonic/gin"
)

type createWorkspaceRequest struct {
	Name               string `json:"name" binding:"required"`
	Description        string `json:"description"`
	IsPublic           bool   `json:"is_public"`
	AllowMemberInvites *bool  `json:"allow_member_invites"`
}

type updateWorkspaceRequest struct {
	Name               *string `json:"name"`
	Description        *string `json:"description"`
	IsPublic           *bool   `json:"is_public"`
	AllowMemberInvites *bool   `json:"allow_member_invites"`
}

func (s *Server) CreateWorkspace(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	allowInvites := true
	if req.AllowMemberInvites != nil {
		allowInvites = *req.AllowMemberInvites
	}

	resp, err := s.workspaceSvc.Create(c.Request.Context(), principalFrom(c), workspacedomain.CreateRequest{
		Name:               req.Name,
		Description:        req.Description,
		IsPublic:           req.IsPublic,
		AllowMemberInvites: allowInvites,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListWorkspaces(c *gin.Context) {
	items, err := s.workspaceSvc.ListByUser(c.Request.Context(), principalFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workspaces": items})
}

func (s *Server) GetWorkspace(c *gin.Context) {
	resp, err := s.workspaceSvc.GetByID(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) UpdateWorkspace(c *gin.Context) {
	var req updateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.workspaceSvc.Update(c.Request.Context(), principalFrom(c), c.Param("id"), workspacedomain.UpdateRequest{
		Name:               req.Name,
		Description:        req.Description,
		IsPublic:           req.IsPublic,
		AllowMemberInvites: req.AllowMemberInvites,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeleteWorkspace(c *gin.Context) {
	if err := s.workspaceSvc.Delete(c.Request.Context(), principalFrom(c), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
