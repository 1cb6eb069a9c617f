package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Alia5/midikeys/internal/configpaths"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// ConfigCommand groups config-related subcommands.
type ConfigCommand struct {
	Init ConfigInit `cmd:"" help:"Generate a configuration template"`
}

// ConfigInit scaffolds a configuration file for a command.
type ConfigInit struct {
	Command string `arg:"" name:"command" help:"Command to generate config for" enum:"run" default:"run"`
	Format  string `help:"Output format" enum:"json,yaml,toml" default:"json"`
	Output  string `help:"Destination file path (defaults to config.<ext> in the config directory)"`
	Force   bool   `help:"Overwrite if the file already exists"`
}

var configurable = map[string]reflect.Type{
	"run": reflect.TypeOf(Run{}),
}

// Run builds the template from the command struct's kong tags.
func (c *ConfigInit) Run() error {
	t, ok := configurable[c.Command]
	if !ok {
		return fmt.Errorf("unknown command %q", c.Command)
	}
	data, err := renderTemplate(t, c.Format)
	if err != nil {
		return err
	}

	dest := c.Output
	if dest == "" {
		if dest, err = configpaths.DefaultNamedConfigPath("config", c.Format); err != nil {
			return err
		}
	}
	if !c.Force {
		if _, err := os.Stat(dest); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(dest); err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "wrote %s\n", dest)
	return nil
}

func renderTemplate(t reflect.Type, format string) ([]byte, error) {
	root := buildMapFromStruct(t)
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(root, "", "  ")
	case "yaml", "yml":
		return yaml.Marshal(root)
	case "toml":
		return toml.Marshal(root)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func lowerCamel(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// buildMapFromStruct mirrors the flag tree: embedded groups with a prefix
// become nested maps, the rest are flattened into the parent.
func buildMapFromStruct(t reflect.Type) map[string]any {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := map[string]any{}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("kong") == "-" {
			continue
		}
		if _, ok := f.Tag.Lookup("cmd"); ok {
			continue
		}

		if _, ok := f.Tag.Lookup("embed"); ok {
			sub := buildMapFromStruct(f.Type)
			if name := strings.TrimSuffix(f.Tag.Get("prefix"), "."); name != "" {
				out[name] = sub
			} else {
				for k, v := range sub {
					out[k] = v
				}
			}
			continue
		}

		if val := defaultValueForField(f.Type, f.Tag.Get("default")); val != nil {
			out[lowerCamel(f.Name)] = val
		}
	}
	return out
}

func defaultValueForField(t reflect.Type, def string) any {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == reflect.TypeOf(time.Duration(0)) {
		if def != "" {
			return def
		}
		return "0s"
	}
	switch t.Kind() {
	case reflect.String:
		return def
	case reflect.Bool:
		b, _ := strconv.ParseBool(def)
		return b
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, _ := strconv.ParseInt(def, 10, 64)
		return n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, _ := strconv.ParseUint(def, 10, 64)
		return n
	case reflect.Float32, reflect.Float64:
		f, _ := strconv.ParseFloat(def, 64)
		return f
	case reflect.Slice:
		items := []any{}
		if def == "" {
			return items
		}
		for _, part := range strings.Split(def, ",") {
			if v := defaultValueForField(t.Elem(), strings.TrimSpace(part)); v != nil {
				items = append(items, v)
			}
		}
		return items
	case reflect.Struct:
		return buildMapFromStruct(t)
	default:
		return nil
	}
}
