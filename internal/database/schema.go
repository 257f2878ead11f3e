package database

import (
	"context"
	"fmt"

	auth "github.com/dvsa/dvsa-auth"
	"github.com/uptrace/bun"
)

const userFK = `("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`

type table struct {
	model      any
	references bool
}

// tables is ordered so that referenced tables come first.
var tables = []table{
	{model: (*auth.User)(nil)},
	{model: (*auth.Credentials)(nil), references: true},
	{model: (*auth.Account)(nil), references: true},
	{model: (*auth.Session)(nil), references: true},
	{model: (*auth.Profile)(nil), references: true},
	{model: (*auth.VerificationRequest)(nil), references: true},
}

// CreateTables creates the schema straight from the models. It is used
// for sqlite databases and tests; postgres goes through RunMigrations.
func CreateTables(ctx context.Context, db bun.IDB) error {
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		if t.references {
			q = q.ForeignKey(userFK)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// DropTables removes the schema in reverse dependency order.
func DropTables(ctx context.Context, db bun.IDB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i].model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	return nil
}
