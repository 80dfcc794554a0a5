package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/williamcory/skillchat/internal/config"
	"github.com/williamcory/skillchat/sdk/skillchat"
)

func main() {
	app := &cli.App{
		Name:  "skillchat",
		Usage: "Terminal client for the SkillChat streaming chat service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Config file (default ~/.config/skillchat/config.yaml)",
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "Backend URL",
			},
			&cli.StringFlag{
				Name:  "api-key",
				Usage: "Development API key sent as X-API-Key",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "DEBUG, INFO, WARN or ERROR",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to this file instead of stderr",
			},
		},
		Action: runChat,
		Commands: []*cli.Command{
			chatCommand(),
			sendCommand(),
			conversationsCommand(),
			historyCommand(),
			usageCommand(),
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			mockCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every command needs: the config, a logger and an API client.
type env struct {
	cfg    *config.Config
	logger *skillchat.Logger
	client *skillchat.Client
	closer io.Closer
}

func (e *env) Close() {
	if e.closer != nil {
		e.closer.Close()
	}
}

// setup loads the config and applies the global flags. quiet keeps logs off the
// terminal unless a log file is given.
func setup(c *cli.Context, quiet bool) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("backend"); v != "" {
		cfg.BackendURL = v
	}
	if v := c.String("api-key"); v != "" {
		cfg.APIKey = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := c.String("log-file"); v != "" {
		cfg.LogFile = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &env{cfg: cfg}
	level := skillchat.ParseLogLevel(cfg.LogLevel)
	var w io.Writer = os.Stderr
	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		e.closer = f
	case quiet:
		level = skillchat.LevelOff
	}
	e.logger = skillchat.NewLogger(level, w)
	skillchat.SetLogger(e.logger)

	opts := []skillchat.ClientOption{
		skillchat.WithLogger(e.logger),
		skillchat.WithCookies(cfg.HTTPCookies()),
	}
	if cfg.APIKey != "" {
		opts = append(opts, skillchat.WithAPIKey(cfg.APIKey))
	}
	e.client = skillchat.NewClient(cfg.BackendURL, opts...)
	return e, nil
}
