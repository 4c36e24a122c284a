package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/clickaudit/clickaudit/internal/clickhouse"
)

const (
	defaultPort       = "9000"
	defaultSecurePort = "9440"
)

// ConnectionFlags carries the connection values given on the command
// line. Zero values fall through to the selected profile; the boolean
// flags can only turn their setting on.
type ConnectionFlags struct {
	URLs              []string
	User              string
	Password          string
	Secure            bool
	AcceptInvalidCert bool
}

// Resolve merges the command line with the selected profile into a
// client configuration. An explicit --context beats the stored current
// one; individual flags beat the profile field by field. The password
// comes from the flags when given, otherwise from the keyring entry of
// the resolved profile.
func Resolve(cfg *Config, contextName string, flags ConnectionFlags) (clickhouse.Config, error) {
	var (
		profile Profile
		name    string
	)
	switch {
	case contextName != "":
		p, ok := cfg.Profiles[contextName]
		if !ok {
			return clickhouse.Config{}, fmt.Errorf("context %q not found, run \"clickaudit context list\"", contextName)
		}
		profile, name = p, contextName
	case cfg.Current != "":
		p, ok := cfg.Profiles[cfg.Current]
		if !ok {
			return clickhouse.Config{}, fmt.Errorf("current context %q not found, run \"clickaudit context list\"", cfg.Current)
		}
		profile, name = p, cfg.Current
	}

	urls := profile.URLs
	if len(flags.URLs) > 0 {
		urls = flags.URLs
	}
	if len(urls) == 0 {
		return clickhouse.Config{}, clickhouse.ValidationError("connection", "no url given and no context selected")
	}

	user := profile.User
	if flags.User != "" {
		user = flags.User
	}
	if user == "" {
		return clickhouse.Config{}, clickhouse.ValidationError("connection", "no user given and no context selected")
	}

	secure := profile.Secure || flags.Secure

	type hostPort struct {
		host string
		port string
	}
	parsed := make([]hostPort, 0, len(urls))
	for _, raw := range urls {
		host, port, tls, err := splitURL(raw)
		if err != nil {
			return clickhouse.Config{}, err
		}
		if tls {
			secure = true
		}
		parsed = append(parsed, hostPort{host: host, port: port})
	}

	addrs := make([]string, 0, len(parsed))
	for _, hp := range parsed {
		port := hp.port
		if port == "" {
			port = defaultPort
			if secure {
				port = defaultSecurePort
			}
		}
		addrs = append(addrs, net.JoinHostPort(hp.host, port))
	}

	password := flags.Password
	if password == "" && name != "" {
		stored, err := GetSecret(name)
		if err != nil {
			return clickhouse.Config{}, err
		}
		password = stored
	}

	return clickhouse.Config{
		Addrs:             addrs,
		Username:          user,
		Password:          password,
		Secure:            secure,
		AcceptInvalidCert: profile.AcceptInvalidCert || flags.AcceptInvalidCert,
	}, nil
}

// splitURL accepts host, host:port, or a clickhouse://, clickhouses://
// or tcp:// URL. The secure schemes imply TLS for the whole connection.
func splitURL(raw string) (host, port string, secure bool, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", false, clickhouse.ValidationError("url", "empty address")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "clickhouse://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", "", false, clickhouse.ValidationError("url", err.Error())
	}
	switch u.Scheme {
	case "clickhouse", "tcp":
	case "clickhouses", "tls":
		secure = true
	default:
		return "", "", false, clickhouse.ValidationError("url", fmt.Sprintf("unsupported scheme %q in %q", u.Scheme, raw))
	}
	if u.Hostname() == "" {
		return "", "", false, clickhouse.ValidationError("url", fmt.Sprintf("no host in %q", raw))
	}
	return u.Hostname(), u.Port(), secure, nil
}
