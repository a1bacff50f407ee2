package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/skybox/internal/dbx"
	"github.com/dmitrijs2005/skybox/internal/server/repositories/files"
	"github.com/dmitrijs2005/skybox/internal/server/repositories/ledgers"
	"github.com/dmitrijs2005/skybox/internal/server/repositories/orders"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Files(db dbx.DBTX) files.Repository
	Ledgers(db dbx.DBTX) ledgers.Repository
	Orders(db dbx.DBTX) orders.Repository
}
