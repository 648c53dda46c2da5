package server

import (
	"context"
	"net/http"
	"time"

	"github.com/docuspace/docuspace/internal/config"
	invitationdomain "github.com/docuspace/docuspace/internal/invitation/domain"
	obslogger "github.com/docuspace/docuspace/internal/observability/logger"
	obstracing "github.com/docuspace/docuspace/internal/observability/tracing"
	workspacedomain "github.com/docuspace/docuspace/internal/workspace/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware())
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	workspaceSvc  workspacedomain.Service
	invitationSvc invitationdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	WorkspaceSvc  workspacedomain.Service
	InvitationSvc invitationdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		workspaceSvc:  p.WorkspaceSvc,
		invitationSvc: p.InvitationSvc,
	}
	svc.registerAPIRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", GatewayPrincipal())

	// -------- Workspaces --------
	api.POST("/workspaces", s.CreateWorkspace)
	api.GET("/workspaces", s.ListWorkspaces)
	api.GET("/workspaces/:id", s.GetWorkspace)
	api.PATCH("/workspaces/:id", s.UpdateWorkspace)
	api.DELETE("/workspaces/:id", s.DeleteWorkspace)

	// -------- Members --------
	api.GET("/workspaces/:id/members", s.ListMembers)
	api.PATCH("/workspaces/:id/members/:userId", s.UpdateMember)
	api.DELETE("/workspaces/:id/members/:userId", s.RemoveMember)
	api.POST("/workspaces/:id/leave", s.LeaveWorkspace)

	// -------- Invitations --------
	api.POST("/workspaces/:id/invitations", s.SendInvitation)
	api.GET("/workspaces/:id/invitations", s.ListInvitations)
	api.DELETE("/workspaces/:id/invitations/:invitationId", s.CancelInvitation)
	api.POST("/workspaces/:id/invitations/:invitationId/resend", s.ResendInvitation)

	// The invitation token is the credential on these two routes, so the
	// gateway identity is optional.
	tokens := s.engine.Group("/api/v1", OptionalGatewayPrincipal())
	tokens.POST("/invitations/:token/accept", s.AcceptInvitation)
	tokens.POST("/invitations/:token/reject", s.RejectInvitation)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
