/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"runtime"

	"github.com/somnia-names/somns/cli/flags"
	"github.com/somnia-names/somns/pkg/config"
	"github.com/somnia-names/somns/pkg/core/interop"
	"github.com/somnia-names/somns/pkg/io"
	"github.com/somnia-names/somns/pkg/node"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is a flag for commands that use node configuration.
var Config = cli.StringFlag{
	Name:  "config-path",
	Usage: "path to directory with configuration files (may be overridden by --config-file option for the configuration file)",
}

// ConfigFile is a flag for commands that use node configuration and provide
// path to the specific config file instead of config path.
var ConfigFile = cli.StringFlag{
	Name:  "config-file",
	Usage: "path to the node configuration file (overrides --config-path option)",
}

// RelativePath is a flag for commands that use node configuration and provide
// a prefix to all relative paths in config files.
var RelativePath = cli.StringFlag{
	Name:  "relative-path",
	Usage: "a prefix to all relative paths in the node configuration file",
}

// Debug is a flag for commands that allow node in debug mode usage.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (LOTS of output, overrides configuration)",
}

// Node is a set of flags needed to open the registry.
var Node = []cli.Flag{Config, ConfigFile, RelativePath, Debug}

// From is a flag for the account a call is made by.
var From = flags.AddressFlag{
	Name:  "from, f",
	Usage: "account the call is made by (address or 0x-prefixed LE hash)",
}

// Amount is a flag for the payment attached to a call.
var Amount = flags.AmountFlag{
	Name:  "amount, a",
	Usage: "payment attached to the call, in whole units",
}

var errNoCaller = errors.New("no caller account specified, use option '--from' or '-f'")

// GetConfigFromContext looks at the path and the mode flags in the given config and
// returns an appropriate config.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	var (
		configFile   = ctx.String("config-file")
		relativePath = ctx.String("relative-path")
	)
	if len(configFile) != 0 {
		return config.LoadFile(configFile, relativePath)
	}
	var configPath = "./config"
	if argCp := ctx.String("config-path"); argCp != "" {
		configPath = argCp
	}
	return config.Load(configPath, relativePath)
}

// GetCallContext returns the call context built from --from and --amount
// flags.
func GetCallContext(ctx *cli.Context) (*interop.Context, cli.ExitCoder) {
	from := flags.AddressFromContext(ctx, "from")
	if !from.IsSet {
		return nil, cli.NewExitError(errNoCaller, 1)
	}
	return interop.NewContext(from.Uint160(), flags.AmountFromContext(ctx, "amount")), nil
}

// InitNode loads the configuration, sets up logging and opens the node. The
// returned function must be called to release resources.
func InitNode(ctx *cli.Context) (*node.Node, *zap.Logger, func(), cli.ExitCoder) {
	cfg, err := GetConfigFromContext(ctx)
	if err != nil {
		return nil, nil, nil, cli.NewExitError(err, 1)
	}
	log, _, logCloser, err := HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return nil, nil, nil, cli.NewExitError(err, 1)
	}
	n, err := node.New(cfg, log, nil)
	if err != nil {
		closeLog(log, logCloser)
		return nil, nil, nil, cli.NewExitError(err, 1)
	}
	return n, log, func() {
		if err := n.Close(); err != nil {
			log.Error("failed to close node", zap.Error(err))
		}
		closeLog(log, logCloser)
	}, nil
}

func closeLog(log *zap.Logger, closer func() error) {
	_ = log.Sync()
	if closer != nil {
		_ = closer()
	}
}

var (
	// _winfileSinkRegistered denotes whether zap has registered
	// user-supplied factory for all sinks with `winfile`-prefixed scheme.
	_winfileSinkRegistered bool
	_winfileSinkCloser     func() error
)

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
// If logPath is configured on Windows -- function returns closer to be
// able to close sink for the opened log output file.
func HandleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, *zap.AtomicLevel, func() error, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := io.MakeDirForFile(logPath, "logger"); err != nil {
			return nil, nil, nil, err
		}

		if runtime.GOOS == "windows" {
			if !_winfileSinkRegistered {
				// See https://github.com/uber-go/zap/issues/621.
				err := zap.RegisterSink("winfile", func(u *url.URL) (zap.Sink, error) {
					if u.User != nil || u.Fragment != "" || u.RawQuery != "" || u.Port() != "" {
						return nil, fmt.Errorf("unsupported file URL: %v", u)
					}
					if hn := u.Hostname(); hn != "" && hn != "localhost" {
						return nil, fmt.Errorf("file URLs must leave host empty or use localhost: got %v", u)
					}
					f, err := os.OpenFile(u.Path[1:], // Remove leading slash left after url.Parse.
						os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
					_winfileSinkCloser = func() error {
						_winfileSinkCloser = nil
						return f.Close()
					}
					return f, err
				})
				if err != nil {
					return nil, nil, nil, fmt.Errorf("failed to register windows-specific sink: %w", err)
				}
				_winfileSinkRegistered = true
			}
			logPath = "winfile:///" + logPath
		}

		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, _winfileSinkCloser, err
}
