package util

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jzelinskie/cobrautil"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// ZeroLogPreRunEFunc returns a cobra PreRunE function that wires zerolog into
// the given writer
func ZeroLogPreRunEFunc(out io.Writer) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if cobrautil.IsBuiltinCommand(cmd) {
			return nil // No-op for builtins
		}

		format := cobrautil.MustGetString(cmd, "log-format")
		if err := ConfigureLogger(out, format); err != nil {
			return err
		}

		levelString := strings.ToLower(cobrautil.MustGetString(cmd, "log-level"))
		level, err := zerolog.ParseLevel(levelString)
		if err != nil {
			return fmt.Errorf("unknown log level: %s", levelString)
		}
		zerolog.SetGlobalLevel(level)
		log.Debug().Str("new level", levelString).Msg("set log level")
		return nil
	}
}

// ConfigureLogger points the global logger at out. "human" always uses the
// console writer, "json" never does, and "auto" uses it when out is a tty.
func ConfigureLogger(out io.Writer, format string) error {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	switch format {
	case "human":
	case "auto":
		if !tty {
			format = "json"
		}
	case "json":
	default:
		return fmt.Errorf("unknown log format: %s", format)
	}
	if format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return nil
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: !tty})
	return nil
}
