package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Alia5/midikeys/internal/config"
	"github.com/Alia5/midikeys/internal/configpaths"
	"github.com/Alia5/midikeys/internal/log"
	"github.com/Alia5/midikeys/internal/util"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

func main() {
	if util.StartedFromGUI() {
		os.Args = util.GUIArgs(os.Args)
	}

	userCfg := findUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userCfg)

	var cli config.CLI
	ctx := kong.Parse(&cli,
		kong.Name("midikeys"),
		kong.Description("Play a virtual keyboard from a MIDI instrument"),
		kong.UsageOnError(),
		// Flags and env override config file values.
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)

	// The panel owns the terminal, so logs go to a file unless one is set.
	if strings.HasPrefix(ctx.Command(), "run") && cli.Run.Panel && cli.Log.File == "" {
		if dir, err := configpaths.DefaultConfigDir(); err == nil {
			cli.Log.File = filepath.Join(dir, "midikeys.log")
			_ = configpaths.EnsureDir(cli.Log.File)
		}
	}

	logger, closeFiles, err := log.SetupLogger(cli.Log.Level, cli.Log.File)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() {
		for _, c := range closeFiles {
			_ = c.Close()
		}
	}()

	rawLogger := log.NewRaw(nil)
	switch {
	case cli.Log.RawFile != "":
		f, err := os.OpenFile(cli.Log.RawFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("failed to open raw log file", "file", cli.Log.RawFile, "error", err)
			break
		}
		rawLogger = log.NewRaw(f)
		closeFiles = append(closeFiles, f)
	case cli.Log.Level == "trace" && !cli.Run.Panel:
		rawLogger = log.NewRaw(os.Stdout)
	}

	ctx.Bind(logger)
	ctx.BindTo(rawLogger, (*log.RawLogger)(nil))

	err = ctx.Run()
	ctx.FatalIfErrorf(err)
}

func findUserConfig(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("MIDIKEYS_CONFIG")
}
