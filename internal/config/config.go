// Package config loads loopviz settings from CUE files.
//
// A file is unified with the embedded #Config schema, which supplies the
// defaults and constraints; the result is decoded into Config.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/asitkr/event-loop-visualizer/internal/engine"
)

//go:embed schema.cue
var schemaSrc string

// Config holds the engine settings.
type Config struct {
	Speed       float64
	DrainPolicy engine.DrainPolicy
	Timing      engine.Timing
}

// file mirrors the CUE layout.
type file struct {
	Speed       float64 `json:"speed"`
	DrainPolicy string  `json:"drain_policy"`
	Timing      struct {
		StageMS   int64 `json:"stage_ms"`
		ExecuteMS int64 `json:"execute_ms"`
		TurnMS    int64 `json:"turn_ms"`
		PollMS    int64 `json:"poll_ms"`
	} `json:"timing"`
}

// Error codes.
const (
	ErrCodeRead    = "E201" // config file unreadable
	ErrCodeSyntax  = "E202" // CUE syntax error
	ErrCodeInvalid = "E203" // value violates the schema
)

// Error reports a configuration problem, with a CUE position when one is known.
type Error struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Default returns the configuration of an empty file.
func Default() Config {
	cfg, err := Parse("default.cue", nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema is invalid: %v", err))
	}
	return cfg
}

// Load reads and validates the CUE file at path.
func Load(path string) (Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{Code: ErrCodeRead, Message: err.Error()}
	}
	return Parse(path, src)
}

// Parse validates src against the schema. filename is used in positions.
func Parse(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return Config{}, fromCUE(ErrCodeInvalid, err)
	}

	user := ctx.CompileBytes(src, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return Config{}, fromCUE(ErrCodeSyntax, err)
	}

	v := schema.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fromCUE(ErrCodeInvalid, err)
	}

	var f file
	if err := v.Decode(&f); err != nil {
		return Config{}, fromCUE(ErrCodeInvalid, err)
	}

	policy, err := engine.ParseDrainPolicy(f.DrainPolicy)
	if err != nil {
		return Config{}, &Error{Code: ErrCodeInvalid, Message: err.Error()}
	}

	return Config{
		Speed:       f.Speed,
		DrainPolicy: policy,
		Timing: engine.Timing{
			Stage:   time.Duration(f.Timing.StageMS) * time.Millisecond,
			Execute: time.Duration(f.Timing.ExecuteMS) * time.Millisecond,
			Turn:    time.Duration(f.Timing.TurnMS) * time.Millisecond,
			Poll:    time.Duration(f.Timing.PollMS) * time.Millisecond,
		},
	}, nil
}

// Options converts the configuration into engine options.
func (c Config) Options() []engine.Option {
	return []engine.Option{
		engine.WithSpeed(c.Speed),
		engine.WithDrainPolicy(c.DrainPolicy),
		engine.WithTiming(c.Timing),
	}
}

// fromCUE keeps the first CUE error and its position.
func fromCUE(code string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Code: code, Message: err.Error()}
	}
	first := errs[0]
	out := &Error{Code: code, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
