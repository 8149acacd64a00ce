package util

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jzelinskie/cobrautil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestConfigureLogger(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		wantJSON bool
		wantErr  bool
	}{
		{name: "json", format: "json", wantJSON: true},
		{name: "auto without a tty", format: "auto", wantJSON: true},
		{name: "human", format: "human"},
		{name: "unknown", format: "xml", wantErr: true},
	}
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			var out bytes.Buffer
			err := ConfigureLogger(&out, tt.format)
			if tt.wantErr {
				require.Error(err)
				return
			}
			require.NoError(err)
			log.Info().Str("table", "clients").Msg("read")

			var line map[string]interface{}
			jsonErr := json.Unmarshal(out.Bytes(), &line)
			if tt.wantJSON {
				require.NoError(jsonErr)
				require.Equal("clients", line["table"])
				return
			}
			require.Error(jsonErr)
			require.Contains(out.String(), "table=clients")
		})
	}
}

func TestZeroLogPreRunE(t *testing.T) {
	require := require.New(t)
	defer func(l zerolog.Logger, lvl zerolog.Level) {
		log.Logger = l
		zerolog.SetGlobalLevel(lvl)
	}(log.Logger, zerolog.GlobalLevel())

	var out bytes.Buffer
	cmd := &cobra.Command{Use: "migrate", RunE: func(*cobra.Command, []string) error { return nil }}
	cobrautil.RegisterZeroLogFlags(cmd.Flags(), "log")
	cmd.PreRunE = ZeroLogPreRunEFunc(&out)
	cmd.SetArgs([]string{"--log-level=warn", "--log-format=json"})
	require.NoError(cmd.Execute())
	require.Equal(zerolog.WarnLevel, zerolog.GlobalLevel())

	cmd.SetArgs([]string{"--log-level=loud"})
	require.Error(cmd.Execute())
}
