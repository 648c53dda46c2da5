package server

import (
	"net/http"

	invitationdomain "github.com/docuspace/docuspace/internal/invitation/domain"
	"github.com/gin-gonic/gin"
)

type sendInvitationRequest struct {
	Email       string          `json:"email" binding:"required"`
	Role        string          `json:"role"`
	Permissions map[string]bool `json:"permissions"`
	Message     string          `json:"message"`
}

func (s *Server) SendInvitation(c *gin.Context) {
	var req sendInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.invitationSvc.Send(c.Request.Context(), principalFrom(c), c.Param("id"), invitationdomain.SendRequest{
		Email:       req.Email,
		Role:        req.Role,
		Permissions: req.Permissions,
		Message:     req.Message,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListInvitations(c *gin.Context) {
	invitations, err := s.invitationSvc.ListByWorkspace(c.Request.Context(), principalFrom(c), c.Param("id"), c.Query("status"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invitations})
}

func (s *Server) CancelInvitation(c *gin.Context) {
	if err := s.invitationSvc.Cancel(c.Request.Context(), principalFrom(c), c.Param("id"), c.Param("invitationId")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ResendInvitation(c *gin.Context) {
	resp, err := s.invitationSvc.Resend(c.Request.Context(), principalFrom(c), c.Param("id"), c.Param("invitationId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	resp, err := s.invitationSvc.Accept(c.Request.Context(), principalFrom(c), c.Param("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) RejectInvitation(c *gin.Context) {
	if err := s.invitationSvc.Reject(c.Request.Context(), principalFrom(c), c.Param("token")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
