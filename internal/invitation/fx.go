package invitation

import (
	"github.com/docuspace/docuspace/internal/invitation/repository"
	"github.com/docuspace/docuspace/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
