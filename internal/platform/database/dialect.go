package database

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"certhub/internal/platform/config"
)

// Dialect names a supported SQL backend and the database/sql driver serving it.
type Dialect struct {
	Name        string
	Driver      string
	DefaultPort int
}

var (
	Postgres = Dialect{Name: "postgres", Driver: "postgres", DefaultPort: 5432}
	MySQL    = Dialect{Name: "mysql", Driver: "mysql", DefaultPort: 3306}
	SQLite   = Dialect{Name: "sqlite3", Driver: "sqlite3"}
)

// LookupDialect resolves a DB_DRIVER value.
func LookupDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q (expected postgres, mysql or sqlite3)", name)
}

// Rebind converts a query written with ? placeholders into the dialect's bindvar style.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(d.Driver), query)
}

// DSN renders the driver data source name. DATABASE_URL wins over discrete settings.
func (d Dialect) DSN(cfg config.Database) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}

	port := cfg.Port
	if port == 0 {
		port = d.DefaultPort
	}

	switch d.Name {
	case Postgres.Name:
		sslmode := "disable"
		if cfg.SSL {
			sslmode = "require"
		}
		q := url.Values{}
		q.Set("sslmode", sslmode)
		if cfg.ConnectTimeout > 0 {
			q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
			Path:     "/" + cfg.Name,
			RawQuery: q.Encode(),
		}
		return u.String(), nil
	case MySQL.Name:
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		mc.DBName = cfg.Name
		mc.ParseTime = true
		mc.Timeout = cfg.ConnectTimeout
		mc.Params = map[string]string{"charset": "utf8mb4"}
		if cfg.SSL {
			mc.TLSConfig = "true"
		}
		return mc.FormatDSN(), nil
	case SQLite.Name:
		if cfg.Name == "" {
			return "", fmt.Errorf("sqlite3 requires DB_NAME to be a file path")
		}
		return cfg.Name + "?_busy_timeout=5000", nil
	}
	return "", fmt.Errorf("no DSN builder for dialect %q", d.Name)
}

// Address returns host:port of the configured server, or "" for file databases.
func (d Dialect) Address(cfg config.Database) string {
	if d.Name == SQLite.Name {
		return ""
	}
	if cfg.URL != "" {
		if d.Name == MySQL.Name {
			if mc, err := mysql.ParseDSN(cfg.URL); err == nil {
				return mc.Addr
			}
			return ""
		}
		if u, err := url.Parse(cfg.URL); err == nil && u.Host != "" {
			if u.Port() == "" {
				return net.JoinHostPort(u.Hostname(), strconv.Itoa(d.DefaultPort))
			}
			return u.Host
		}
		return ""
	}
	port := cfg.Port
	if port == 0 {
		port = d.DefaultPort
	}
	return net.JoinHostPort(cfg.Host, strconv.Itoa(port))
}
