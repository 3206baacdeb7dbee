package salesrequest

import (
	"github.com/maburgos12/pollyanas-dolce-erp/internal/salesrequest/service"
	"go.uber.org/fx"
)

var Module = fx.Module("salesrequest.service",
	fx.Provide(service.NewService),
)
