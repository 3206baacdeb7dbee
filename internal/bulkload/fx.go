package bulkload

import (
	"github.com/maburgos12/pollyanas-dolce-erp/internal/bulkload/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bulkload.service",
	fx.Provide(service.NewService),
)
