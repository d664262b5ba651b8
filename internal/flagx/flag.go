// Package flagx holds helpers for parsing the subset of command-line flags a
// component owns without tripping over flags that belong to other components.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// flagName strips the leading dashes, so "-config" and "--config" name the
// same flag, as they do for the flag package.
func flagName(arg string) string {
	return strings.TrimLeft(arg, "-")
}

// FilterArgs returns the arguments that belong to the allowed flags, together
// with their values. Flags match regardless of one or two leading dashes.
//
// Supported forms:
//
//	-c conf.json
//	--config=conf.json
//
// A value is taken from the next argument only when it does not itself look
// like a flag. Parsing stops at the "--" terminator.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[flagName(f)] = struct{}{}
	}

	// never nil, so callers can pass it straight to FlagSet.Parse
	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, hasValue := strings.Cut(arg, "=")
		if _, ok := allowed[flagName(name)]; !ok {
			continue
		}

		filtered = append(filtered, arg)
		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigFileFlags returns the config file path given with -c or -config
// (either dash form). The file may be JSON or YAML. Other arguments are
// ignored, so components can parse their own flags independently. When
// both are given the last one wins. It returns "" when neither is present.
func ConfigFileFlags() string {
	var path string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(discard{})
	fs.StringVar(&path, "config", "", "Path to config file")
	fs.StringVar(&path, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return path
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
