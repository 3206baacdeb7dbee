package forecast

import (
	"github.com/maburgos12/pollyanas-dolce-erp/internal/forecast/service"
	"go.uber.org/fx"
)

var Module = fx.Module("forecast.service",
	fx.Provide(service.NewService),
)
