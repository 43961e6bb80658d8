package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/simpleauth/internal/dbx"
	"github.com/dmitrijs2005/simpleauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/simpleauth/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so
// services can run the same repository code against *sql.DB or an open
// transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
