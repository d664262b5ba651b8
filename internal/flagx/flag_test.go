package flagx

import (
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterArgs(t *testing.T) {
	configFlags := []string{"-c", "-config"}

	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{"short with value", []string{"-c", "conf.json", "-a", ":50051"}, configFlags, []string{"-c", "conf.json"}},
		{"double dash with equals", []string{"--config=alt.yaml", "-a", ":50051"}, configFlags, []string{"--config=alt.yaml"}},
		{"double dash with value", []string{"--config", "alt.yaml"}, configFlags, []string{"--config", "alt.yaml"}},
		{"allowed given with double dash", []string{"-config", "x.json"}, []string{"--config"}, []string{"-config", "x.json"}},
		{"foreign flags dropped", []string{"-x", "1", "--y=2", "positional"}, configFlags, []string{}},
		{"trailing flag without value", []string{"-c"}, configFlags, []string{"-c"}},
		{"next flag is not a value", []string{"-c", "-d", "dsn"}, configFlags, []string{"-c"}},
		{"equals value may start with dash", []string{"--config=-odd.json"}, configFlags, []string{"--config=-odd.json"}},
		{"order preserved", []string{"-a", ":1", "-c", "a.json", "-c", "b.json"}, []string{"-a", "-c"}, []string{"-a", ":1", "-c", "a.json", "-c", "b.json"}},
		{"stops at terminator", []string{"-c", "a.json", "--", "-c", "b.json"}, configFlags, []string{"-c", "a.json"}},
		{"bare dash ignored", []string{"-", "-c", "a.json"}, configFlags, []string{"-c", "a.json"}},
		{"empty", nil, configFlags, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterArgs_ParsesWithFlagSet(t *testing.T) {
	args := FilterArgs(
		[]string{"-e", "corp.example", "--token_ttl=1h", "-p", "google,ldap", "-x"},
		[]string{"-e", "-p"},
	)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	domain := fs.String("e", "", "")
	providers := fs.String("p", "", "")
	require.NoError(t, fs.Parse(args))

	assert.Equal(t, "corp.example", *domain)
	assert.Equal(t, "google,ldap", *providers)
}

func TestConfigFileFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short", []string{"-c", "/etc/idlink/short.yaml"}, "/etc/idlink/short.yaml"},
		{"long", []string{"-config", "/etc/idlink/long.json"}, "/etc/idlink/long.json"},
		{"double dash equals", []string{"--config=/etc/idlink/dd.yaml"}, "/etc/idlink/dd.yaml"},
		{"absent", []string{"-a", ":50051", "-d", "postgres://"}, ""},
		{"last wins", []string{"-c", "/1.json", "-config", "/2.json"}, "/2.json"},
		{"ignored after terminator", []string{"--", "-c", "/late.json"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = append([]string{"idlink"}, tt.args...)
			assert.Equal(t, tt.want, ConfigFileFlags())
		})
	}
}
