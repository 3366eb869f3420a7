package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asitkr/event-loop-visualizer/internal/config"
	"github.com/asitkr/event-loop-visualizer/internal/engine"
	"github.com/asitkr/event-loop-visualizer/internal/store"
)

// StdinPath selects standard input as the program source.
const StdinPath = "-"

// LoadProgram reads program text from path, or from stdin when path is
// empty or "-".
func LoadProgram(path string, stdin io.Reader) (string, error) {
	if path == "" || path == StdinPath {
		if stdin == nil {
			return "", fmt.Errorf("no program given and no stdin available")
		}
		src, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(src), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("program file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("program file: %s is a directory", path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("program file: %w", err)
	}
	return string(src), nil
}

// programArg returns the optional positional program path.
func programArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// loadProgramForCommand wraps LoadProgram with the command's stdin and the
// exit code for unreadable input.
func loadProgramForCommand(cmd *cobra.Command, args []string) (string, error) {
	program, err := LoadProgram(programArg(args), cmd.InOrStdin())
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to load program", err)
	}
	return program, nil
}

// EngineFlags are the settings shared by every command that builds an
// engine. Flags override the config file, which overrides the defaults.
type EngineFlags struct {
	ConfigPath string
	Speed      float64
	Policy     string
	Instant    bool
}

func (f *EngineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ConfigPath, "config", "", "path to a .cue config file")
	cmd.Flags().Float64Var(&f.Speed, "speed", engine.DefaultSpeed, "playback speed factor (> 0)")
	cmd.Flags().StringVar(&f.Policy, "policy", string(engine.DrainAfterScript), "drain policy (after-script|every-turn)")
	cmd.Flags().BoolVar(&f.Instant, "instant", false, "skip every wait")
}

// resolve merges the config file and the flags the user set explicitly.
func (f *EngineFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if f.ConfigPath != "" {
		loaded, err := config.Load(f.ConfigPath)
		if err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "invalid config", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("speed") {
		if !engine.ValidSpeed(f.Speed) {
			return config.Config{}, WrapExitError(ExitCommandError, "invalid --speed",
				fmt.Errorf("%w: %v", engine.ErrInvalidSpeed, f.Speed))
		}
		cfg.Speed = f.Speed
	}
	if cmd.Flags().Changed("policy") {
		policy, err := engine.ParseDrainPolicy(f.Policy)
		if err != nil {
			return config.Config{}, WrapExitError(ExitCommandError, "invalid --policy", err)
		}
		cfg.DrainPolicy = policy
	}
	if f.Instant {
		cfg.Timing.Stage, cfg.Timing.Execute, cfg.Timing.Turn = 0, 0, 0
	}
	return cfg, nil
}

// errorCode maps a command error onto the JSON error code.
func errorCode(err error) string {
	var cfgErr *config.Error
	switch {
	case errors.As(err, &cfgErr), errors.Is(err, engine.ErrInvalidSpeed), errors.Is(err, engine.ErrUnknownDrainPolicy):
		return CodeFlag
	case errors.Is(err, errDatabase):
		return CodeDatabase
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, os.ErrNotExist):
		return CodeProgram
	default:
		return CodeFailure
	}
}

// openExistingStore opens a database that must already exist. store.Open
// would otherwise create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path), err)
	}
	if info.IsDir() {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database path is a directory: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", fmt.Errorf("%w: %w", errDatabase, err))
	}
	return st, nil
}

// splitLines splits s on newlines, dropping the trailing empty line.
func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
