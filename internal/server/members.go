package server

import (
	"net/http"

	workspacedomain "github.com/docuspace/docuspace/internal/workspace/domain"
	"github.com/gin-gonic/gin"
)

type updateMemberRequest struct {
	Role        string          `json:"role"`
	Permissions map[string]bool `json:"permissions"`
}

func (s *Server) ListMembers(c *gin.Context) {
	members, err := s.workspaceSvc.ListMembers(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (s *Server) UpdateMember(c *gin.Context) {
	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.workspaceSvc.UpdateMemberRole(c.Request.Context(), principalFrom(c), c.Param("id"), c.Param("userId"), workspacedomain.UpdateMemberRequest{
		Role:        req.Role,
		Permissions: req.Permissions,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) RemoveMember(c *gin.Context) {
	if err := s.workspaceSvc.RemoveMember(c.Request.Context(), principalFrom(c), c.Param("id"), c.Param("userId")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) LeaveWorkspace(c *gin.Context) {
	if err := s.workspaceSvc.Leave(c.Request.Context(), principalFrom(c), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
