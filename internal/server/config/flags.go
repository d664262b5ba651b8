package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/idlink/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     gRPC bind address (e.g., ":50051")
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret key
//	-t duration   default token lifetime (e.g., "8760h")
//	-m duration   maximum token lifetime, 0 for none
//	-e string     placeholder email domain
//	-p string     comma separated providers whose email is trusted
//	-b string     storage backend: postgres or memory
//	-k string     token store: postgres or redis
//	-r string     redis address
//	-l string     log backend: slog or zap
//	-x bool       export traces to stdout (use -x=true)
//	-n string     passphrase sealing stored provider credentials
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-m", "-e", "-p", "-b", "-k", "-r", "-l", "-x", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.TokenTTL, "t", config.TokenTTL, "default token lifetime")
	fs.DurationVar(&config.TokenMaxTTL, "m", config.TokenMaxTTL, "maximum token lifetime")
	fs.StringVar(&config.EmailDomain, "e", config.EmailDomain, "placeholder email domain")
	providers := fs.String("p", strings.Join(config.EmailProviders, ","), "providers with trusted email")
	fs.StringVar(&config.Storage, "b", config.Storage, "storage backend")
	fs.StringVar(&config.TokenStore, "k", config.TokenStore, "token store")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend")
	fs.BoolVar(&config.Tracing, "x", config.Tracing, "export traces to stdout")
	fs.StringVar(&config.CredentialsKey, "n", config.CredentialsKey, "credentials passphrase")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.EmailProviders = splitList(*providers)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
