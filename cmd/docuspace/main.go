package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/access"
	"github.com/docuspace/docuspace/internal/clock"
	"github.com/docuspace/docuspace/internal/config"
	"github.com/docuspace/docuspace/internal/documents"
	"github.com/docuspace/docuspace/internal/invitation"
	"github.com/docuspace/docuspace/internal/membership"
	"github.com/docuspace/docuspace/internal/migration"
	"github.com/docuspace/docuspace/internal/observability"
	"github.com/docuspace/docuspace/internal/providers/email"
	"github.com/docuspace/docuspace/internal/scheduler"
	"github.com/docuspace/docuspace/internal/server"
	"github.com/docuspace/docuspace/internal/user"
	"github.com/docuspace/docuspace/internal/workspace"
	"github.com/docuspace/docuspace/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		user.Module,
		documents.Module,
		workspace.Module,
		membership.Module,
		access.Module,
		email.Module,
		invitation.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
