package masters

import (
	"github.com/maburgos12/pollyanas-dolce-erp/internal/masters/service"
	"go.uber.org/fx"
)

var Module = fx.Module("masters.service",
	fx.Provide(service.NewService),
)
