package registry

import (
	"net/url"
	"regexp"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
)

// SanitizeDSN ensures that URL-style DSNs (postgres://) have their userinfo
// (especially the password) properly percent-encoded. Raw passwords
// containing @, #, %, or other URL-special characters cause the Go URL
// parser to mis-split the authority component, so the binding never comes
// up and the sync run fails before introspection starts.
//
// MySQL DSNs are normalized to use the tcp() wrapper required by
// go-sql-driver. SQLite paths are returned unchanged.
func SanitizeDSN(driver, dsn string) string {
	switch driver {
	case "postgres":
		return sanitizeURLDSN(dsn)
	case "mysql":
		return sanitizeMySQLDSN(dsn)
	default:
		return dsn
	}
}

// mysqlBareHostPort matches "user:pass@host:port/db" (no tcp() wrapper, no ()
// wrapper). We look for the last "@" followed by what looks like host:port/db.
var mysqlBareHostPort = regexp.MustCompile(`^(.+)@([^(@]+:\d+)(/.*)?$`)

// sanitizeMySQLDSN normalizes a MySQL DSN so that go-sql-driver/mysql can
// parse it correctly. The driver requires the format:
//
//	user:pass@tcp(host:port)/dbname
//
// Common mistakes from users:
//
//	user:pass@host:port/db          → missing tcp() wrapper
//	user:pass@(host:port)/db        → missing "tcp" before parens
//	user:pass@tcp(host:port)/db     → already correct
//
// When the password contains "@", the driver's ParseDSN splits on the last
// "@" before "/" — this works ONLY when "tcp(" is present, otherwise the
// parser treats the password fragment as a network name.
func sanitizeMySQLDSN(dsn string) string {
	// If it already parses cleanly and has a known network, trust it.
	if cfg, err := mysqldriver.ParseDSN(dsn); err == nil && (cfg.Net == "tcp" || cfg.Net == "unix") {
		return cfg.FormatDSN()
	}

	// Pattern: user:pass@(host:port)/db — missing "tcp" keyword.
	if idx := strings.LastIndex(dsn, "@("); idx >= 0 {
		fixed := dsn[:idx] + "@tcp" + dsn[idx+1:]
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	// Pattern: user:pass@host:port/db — no parens at all.
	if m := mysqlBareHostPort.FindStringSubmatch(dsn); m != nil {
		userpass := m[1]
		hostport := m[2]
		dbpart := m[3]
		fixed := userpass + "@tcp(" + hostport + ")" + dbpart
		if cfg, err := mysqldriver.ParseDSN(fixed); err == nil {
			return cfg.FormatDSN()
		}
	}

	// Nothing worked — return as-is and let the connect call give a clear error.
	return dsn
}

// sanitizeURLDSN parses a DSN that begins with a scheme (e.g.
// postgres://user:p@ss#word@host/db) and re-encodes the password so the
// URL library can parse it unambiguously.
func sanitizeURLDSN(dsn string) string {
	schemeEnd := strings.Index(dsn, "://")
	if schemeEnd < 0 {
		return dsn // not a URL-style DSN, return as-is
	}

	scheme := dsn[:schemeEnd]
	rest := dsn[schemeEnd+3:]

	// Split off query/fragment from the authority+path portion.
	query := ""
	if qi := strings.IndexByte(rest, '?'); qi >= 0 {
		query = rest[qi:]
		rest = rest[:qi]
	}

	// Find the LAST '@' — everything before it is userinfo, everything after is host+path.
	atIdx := strings.LastIndex(rest, "@")
	if atIdx < 0 {
		return dsn // no credentials in the DSN
	}

	userinfo := rest[:atIdx]
	hostpath := rest[atIdx+1:]

	// Split userinfo into user and password at the FIRST ':'.
	user := userinfo
	pass := ""
	if ci := strings.IndexByte(userinfo, ':'); ci >= 0 {
		user = userinfo[:ci]
		pass = userinfo[ci+1:]
	}

	encodedUser := url.PathEscape(user)
	encodedPass := url.PathEscape(pass)

	if pass == "" {
		return scheme + "://" + encodedUser + "@" + hostpath + query
	}
	return scheme + "://" + encodedUser + ":" + encodedPass + "@" + hostpath + query
}
