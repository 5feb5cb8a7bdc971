package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/animalet/passwork-go/pkg/config"
	"github.com/animalet/passwork-go/pkg/runner"
	"github.com/animalet/passwork-go/pkg/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type app struct {
	stdout     io.Writer
	stderr     io.Writer
	configFile string
	debug      bool
	exitCode   int
}

// execute runs the command line and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", err)
		return 1
	}
	return a.exitCode
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "passwork-examples",
		Short: "Run the Passwork API client examples",
		Long: `Each command authenticates against a Passwork server and performs one
API call: creating a vault, creating a company vault, sharing an item
through a link or reading a decrypted item snapshot.

Connection settings come from --config (YAML or TOML) or, without it, from
PASSWORK_HOST, PASSWORK_ACCESS_TOKEN, PASSWORK_REFRESH_TOKEN and
PASSWORK_MASTER_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			a.setupLogging()
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to a YAML or TOML configuration file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.createVaultCommand(),
		a.createCompanyVaultCommand(),
		a.createLinkCommand(),
		a.getSnapshotCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) setupLogging() {
	if a.debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        a.stderr,
		TimeFormat: "2006-01-02 15:04:05",
	})
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", "passwork-examples", version)
		},
	}
}

// run loads the configuration, opens the token store and hands op to the
// runner. Setup failures are reported like authentication failures.
func (a *app) run(cmd *cobra.Command, flags func(*runner.Params), build func(runner.Params) runner.Operation) {
	cfg, params, err := a.load(flags)
	if err != nil {
		a.fail(err)
		return
	}

	var store tokenstore.Store
	if cfg.TokenStore != nil {
		if store, err = cfg.TokenStore.CreateClient(); err != nil {
			a.fail(errors.Wrap(err, "failed to open token store"))
			return
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close token store")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Passwork.EffectiveTimeout())
	defer cancel()

	log.Debug().Str("host", cfg.Passwork.Host).Str("command", cmd.Name()).Msg("Running example")
	a.exitCode = runner.Run(ctx, a.stdout, runner.NewAuthenticator(cfg.Passwork, store), build(params))
}

func (a *app) load(flags func(*runner.Params)) (*config.Config, runner.Params, error) {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return nil, runner.Params{}, err
	}

	var params runner.Params
	section, err := config.Section[runner.Params](cfg, "examples")
	if err != nil {
		return nil, runner.Params{}, err
	}
	if section != nil {
		params = *section
	}
	flags(&params)
	return cfg, params, nil
}

func (a *app) fail(err error) {
	log.Debug().Err(err).Msg("Setup failed")
	_, _ = fmt.Fprintf(a.stdout, "Error: %s\n", err)
	a.exitCode = runner.ExitAuthFailed
}

// failed is an operation that only reports err.
func failed(err error) runner.Operation {
	return func(context.Context, runner.Client) (string, error) {
		return "", err
	}
}
