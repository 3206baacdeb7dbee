package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/bulkload"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/clock"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/config"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/forecast"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/masters"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/migration"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/observability"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/saleshistory"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/salesrequest"
	"github.com/maburgos12/pollyanas-dolce-erp/internal/server"
	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// functional domains
		masters.Module,
		saleshistory.Module,
		forecast.Module,
		salesrequest.Module,
		bulkload.Module,

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
