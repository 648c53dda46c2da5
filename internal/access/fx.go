package access

import (
	"go.uber.org/fx"
)

var Module = fx.Module("access",
	fx.Provide(NewEvaluator),
)
