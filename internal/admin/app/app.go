// Package app wires the session together: configuration, operator
// identity, the event channel, local history, and scripted commands.
// One App is built at startup and passed into every view constructor;
// nothing here is a package-level singleton.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/cherrydoor/cherryctl/internal/channel"
	"github.com/cherrydoor/cherryctl/internal/config"
	"github.com/cherrydoor/cherryctl/internal/console"
	"github.com/cherrydoor/cherryctl/internal/db"
	"github.com/cherrydoor/cherryctl/internal/scripting"
)

// Identity is the operator this session acts as. Permissions is the
// authoritative permission vocabulary: every user entity in a
// snapshot carries exactly this key set, and the operator can never
// grant a key they do not hold.
type Identity struct {
	Username    string
	Permissions map[string]bool
}

// App is the session context.
type App struct {
	ConfigPath string
	Config     *config.Config
	Identity   Identity
	Channel    *channel.Channel
	History    *db.DB
	Commands   []console.Command
}

// New builds the session from a config file and connects the channel.
// The returned cleanup closes everything.
func New(ctx context.Context, configPath string) (*App, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.Paths.Data, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	database, err := db.Open(cfg.Paths.History)
	if err != nil {
		return nil, nil, err
	}

	commands, closeScripts, err := scripting.LoadCommands(cfg.Paths.Scripts)
	if err != nil {
		_ = database.Close()
		return nil, nil, err
	}

	settings := channel.DefaultSettings()
	if cfg.Timeouts.Reconnect > 0 {
		settings.ReconnectTimeout = cfg.Timeouts.Reconnect
	}
	if cfg.Timeouts.Request > 0 {
		settings.RequestTimeout = cfg.Timeouts.Request
	}

	ch := channel.New(ctx, cfg.Server.URL, cfg.Server.Token, settings)

	a := &App{
		ConfigPath: configPath,
		Config:     cfg,
		Identity: Identity{
			Username:    cfg.Operator.Username,
			Permissions: cfg.Operator.Permissions,
		},
		Channel:  ch,
		History:  database,
		Commands: commands,
	}

	cleanup := func() {
		ch.Close()
		closeScripts()
		_ = database.Close()
	}

	return a, cleanup, nil
}
