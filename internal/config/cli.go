// Package config defines the command-line surface.
package config

import "github.com/Alia5/midikeys/internal/cmd"

type Log struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"MIDIKEYS_LOG_LEVEL"`
	File    string `help:"Write logs to this file; errors still go to stderr" type:"path" env:"MIDIKEYS_LOG_FILE"`
	RawFile string `help:"Hex dump raw MIDI input and virtual keyboard writes to this file" type:"path" env:"MIDIKEYS_LOG_RAW_FILE"`
}

type CLI struct {
	ConfigFile string `name:"config" help:"Configuration file (json, yaml or toml)" type:"path" env:"MIDIKEYS_CONFIG"`
	Log        Log    `embed:"" prefix:"log."`

	Run    cmd.Run           `cmd:"" help:"Translate MIDI notes into virtual keyboard input"`
	Ports  cmd.Ports         `cmd:"" help:"List MIDI input ports"`
	Layout cmd.LayoutCommand `cmd:"" help:"Inspect or export the key layout"`
	Cfg    cmd.ConfigCommand `cmd:"" name:"config" help:"Manage configuration files"`
}
