package saleshistory

import (
	"github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("saleshistory.service",
	fx.Provide(service.NewService),
)
