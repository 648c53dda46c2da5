package user

import (
	"github.com/docuspace/docuspace/internal/user/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("user",
	fx.Provide(repository.NewRepository),
)
