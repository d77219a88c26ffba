// Package app builds the per-process state shared by the fspec commands:
// configuration, the debug logger, the locked file manager and the project
// store.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/fspec/internal/config"
	"github.com/Iron-Ham/fspec/internal/filemanager"
	"github.com/Iron-Ham/fspec/internal/logging"
	"github.com/Iron-Ham/fspec/internal/project"
)

// RootFlag is the persistent flag selecting the project root.
const RootFlag = "root"

// App is the state of one fspec invocation. There is exactly one file
// manager per process, so every command shares its in-process lock table.
type App struct {
	Root   string
	Config *config.Config
	Logger *logging.Logger
	Files  *filemanager.Manager
	Store  *project.Store
}

// Open loads the configuration and wires the manager and store for cmd.
func Open(cmd *cobra.Command) (*App, error) {
	root, err := Root(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLogger(config.StateDir(root), cfg.Logging.Level, cfg.Logging.Rotation())
		if err != nil {
			return nil, fmt.Errorf("failed to open debug log: %w", err)
		}
	}
	logger = logger.With("command", cmd.Name())

	files := filemanager.New(
		filemanager.WithLockOptions(cfg.Locking.LockOptions()),
		filemanager.WithLogger(logger),
	)

	logger.Debug("command started", "root", root, "args", os.Args[1:])
	return &App{
		Root:   root,
		Config: cfg,
		Logger: logger,
		Files:  files,
		Store:  project.NewStore(root, files, logger),
	}, nil
}

// Close flushes and closes the debug log.
func (a *App) Close() error {
	return a.Logger.Close()
}

// Root returns the absolute project root: the --root flag, or the working
// directory.
func Root(cmd *cobra.Command) (string, error) {
	root := ""
	if f := cmd.Flags().Lookup(RootFlag); f != nil {
		root = f.Value.String()
	}
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project root: %w", err)
	}
	return abs, nil
}
