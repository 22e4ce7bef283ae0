// Package mssql registers the SQL Server tenant driver (go-mssqldb).
// Import it for side effects.
package mssql

import (
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // registers "sqlserver" with database/sql

	"github.com/chatq-inc/chatq-engine/pkg/adapters/datasource"
	"github.com/chatq-inc/chatq-engine/pkg/models"
)

const (
	Type        = "sqlserver"
	DisplayName = "Microsoft SQL Server"
)

func init() {
	datasource.Register(datasource.DriverRegistration{
		Info: datasource.DriverInfo{
			Type:        Type,
			DisplayName: DisplayName,
			DriverName:  "sqlserver",
			Aliases:     []string{"mssql", "com.microsoft.sqlserver.jdbc.SQLServerDriver"},
		},
		BuildDSN:        BuildDSN,
		QuoteIdentifier: QuoteIdentifier,
	})
}

// QuoteIdentifier uses SQL Server's bracket quoting: [name]. go-mssqldb
// rejects read-only transactions, so statements run in a plain transaction
// that is always rolled back.
func QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// JDBC property names mapped to their go-mssqldb query parameter.
var jdbcProperties = map[string]string{
	"databasename":           "database",
	"database":               "database",
	"encrypt":                "encrypt",
	"trustservercertificate": "TrustServerCertificate",
	"logintimeout":           "connection timeout",
	"applicationname":        "app name",
}

// BuildDSN converts a chatqcomp row into a go-mssqldb URL. Both the URL form
// (sqlserver://host:1433?database=db) and the JDBC property form
// (jdbc:sqlserver://host:1433;databaseName=db;encrypt=true) are accepted.
func BuildDSN(ds *models.TenantDataSource) (string, error) {
	raw := datasource.StripJDBCPrefix(ds.URL)
	user, password := ds.User, ds.Password

	base, props, hasProps := strings.Cut(raw, ";")
	query := url.Values{}
	if hasProps {
		for _, prop := range strings.Split(props, ";") {
			key, value, ok := strings.Cut(prop, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			key = strings.TrimSpace(key)
			switch lower := strings.ToLower(key); lower {
			case "user":
				if user == "" {
					user = value
				}
			case "password":
				if password == "" {
					password = value
				}
			default:
				if mapped, known := jdbcProperties[lower]; known {
					key = mapped
				}
				query.Set(key, value)
			}
		}
	}

	u, err := datasource.ParseURL(base, user, password, "sqlserver")
	if err != nil {
		return "", err
	}

	merged := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			merged.Set(k, v)
		}
	}
	u.RawQuery = merged.Encode()
	return u.String(), nil
}
