package provision

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoload/internal/db"
)

// Account names the login role and database the loader connects with.
type Account struct {
	Database string
	User     string
	Password string
}

// Bootstrap creates the login role and the database through a superuser
// connection when they do not exist yet. Existing objects are left as
// they are, including the role's password.
func Bootstrap(ctx context.Context, admin db.Pool, acct Account) error {
	if acct.Database == "" || acct.User == "" {
		return eris.New("provision: bootstrap needs a database and a user")
	}

	log := zap.L().With(
		zap.String("component", "provision.bootstrap"),
		zap.String("database", acct.Database),
		zap.String("user", acct.User),
	)

	user := pgx.Identifier{acct.User}.Sanitize()
	dbName := pgx.Identifier{acct.Database}.Sanitize()

	var roleExists bool
	if err := admin.QueryRow(ctx,
		"SELECT EXISTS (SELECT FROM pg_catalog.pg_roles WHERE rolname = $1)", acct.User,
	).Scan(&roleExists); err != nil {
		return eris.Wrap(err, "provision: look up role")
	}
	if !roleExists {
		// Utility statements take no bind parameters.
		sql := "CREATE ROLE " + user + " WITH LOGIN CREATEDB PASSWORD " + quoteLiteral(acct.Password)
		if _, err := admin.Exec(ctx, sql); err != nil {
			return eris.Wrapf(err, "provision: create role %s", acct.User)
		}
		log.Info("role created")
	}

	var dbExists bool
	if err := admin.QueryRow(ctx,
		"SELECT EXISTS (SELECT FROM pg_database WHERE datname = $1)", acct.Database,
	).Scan(&dbExists); err != nil {
		return eris.Wrap(err, "provision: look up database")
	}
	if !dbExists {
		if _, err := admin.Exec(ctx, "CREATE DATABASE "+dbName+" OWNER "+user); err != nil {
			return eris.Wrapf(err, "provision: create database %s", acct.Database)
		}
		if _, err := admin.Exec(ctx, "GRANT ALL PRIVILEGES ON DATABASE "+dbName+" TO "+user); err != nil {
			return eris.Wrapf(err, "provision: grant on database %s", acct.Database)
		}
		log.Info("database created")
	}

	return nil
}

// quoteLiteral quotes s as a standard SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
