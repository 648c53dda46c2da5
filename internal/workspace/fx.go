package workspace

import (
	"github.com/docuspace/docuspace/internal/workspace/repository"
	"github.com/docuspace/docuspace/internal/workspace/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workspace",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
