package envstruct_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shamoevthomas/forceapp/internal/envstruct"
)

type serverConfig struct {
	Addr      string `env:"FORCEAPP_ADDR" envDefault:"localhost:4000"`
	SqliteURL string `env:"FORCEAPP_SQLITE_URL"`
	Unrelated string
}

type tunedConfig struct {
	Workers  int           `env:"FORCEAPP_WINDOW_WORKERS" envDefault:"4"`
	Verbose  bool          `env:"FORCEAPP_VERBOSE" envDefault:"false"`
	Shutdown time.Duration `env:"FORCEAPP_SHUTDOWN" envDefault:"5s"`
}

func noEnv(_ string) (string, bool) { return "", false }

func TestPopulate(t *testing.T) {
	tests := []struct {
		name      string
		v         any
		lookupEnv func(string) (string, bool)
		want      any
		wantErr   error
	}{
		{
			name:      "nil",
			v:         nil,
			lookupEnv: noEnv,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "not pointer",
			v:         serverConfig{},
			lookupEnv: noEnv,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "pointer to non-struct",
			v:         new(string),
			lookupEnv: noEnv,
			wantErr:   envstruct.ErrInvalidValue,
		},
		{
			name:      "required variable missing",
			v:         &serverConfig{},
			lookupEnv: noEnv,
			wantErr:   envstruct.ErrEnvNotSet,
		},
		{
			name: "defaults and overrides",
			v:    &serverConfig{},
			lookupEnv: func(s string) (string, bool) {
				if s == "FORCEAPP_SQLITE_URL" {
					return ":memory:", true
				}
				return "", false
			},
			want:    &serverConfig{Addr: "localhost:4000", SqliteURL: ":memory:", Unrelated: ""},
			wantErr: nil,
		},
		{
			name:      "every variable set",
			v:         &serverConfig{},
			lookupEnv: func(s string) (string, bool) { return strings.ToLower(s), true },
			want:      &serverConfig{Addr: "forceapp_addr", SqliteURL: "forceapp_sqlite_url", Unrelated: ""},
			wantErr:   nil,
		},
		{
			name:      "typed defaults",
			v:         &tunedConfig{},
			lookupEnv: noEnv,
			want:      &tunedConfig{Workers: 4, Verbose: false, Shutdown: 5 * time.Second},
			wantErr:   nil,
		},
		{
			name: "typed values",
			v:    &tunedConfig{},
			lookupEnv: func(s string) (string, bool) {
				return map[string]string{
					"FORCEAPP_WINDOW_WORKERS": "14",
					"FORCEAPP_VERBOSE":        "true",
					"FORCEAPP_SHUTDOWN":       "250ms",
				}[s], true
			},
			want:    &tunedConfig{Workers: 14, Verbose: true, Shutdown: 250 * time.Millisecond},
			wantErr: nil,
		},
		{
			name:      "malformed int",
			v:         &tunedConfig{},
			lookupEnv: func(s string) (string, bool) { return "many", s == "FORCEAPP_WINDOW_WORKERS" },
			wantErr:   envstruct.ErrParse,
		},
		{
			name: "unsupported type",
			v: &struct {
				Ratio float64 `env:"FORCEAPP_RATIO" envDefault:"0.5"`
			}{},
			lookupEnv: noEnv,
			wantErr:   envstruct.ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := envstruct.Populate(tt.v, tt.lookupEnv)

			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Populate() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Populate() unexpected error = %v", err)
				}
				if diff := cmp.Diff(tt.want, tt.v); diff != "" {
					t.Errorf("Populate() mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}
