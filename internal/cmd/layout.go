package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Alia5/midikeys/engine"
	"github.com/Alia5/midikeys/internal/configpaths"
	"github.com/Alia5/midikeys/keyboard"
	"github.com/Alia5/midikeys/keymap"
	"github.com/Alia5/midikeys/scale"
)

// LayoutCommand groups layout subcommands.
type LayoutCommand struct {
	Show   LayoutShow   `cmd:"" help:"Print the band table"`
	Export LayoutExport `cmd:"" help:"Write the layout to a file"`
}

type LayoutShow struct {
	Layout       string `help:"Layout file; defaults to the one run would use" type:"path" env:"MIDIKEYS_LAYOUT"`
	Notes        bool   `help:"List the keys struck for every mapped note"`
	Experimental bool   `help:"Show strokes for experimental black keys"`
}

func (c *LayoutShow) Run() error {
	km, source, err := loadKeymap(c.Layout)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "layout: %s\n\n", source)
	if c.Notes {
		mode := scale.ModeNormal
		if c.Experimental {
			mode = scale.ModeExperimental
		}
		return writeNotes(os.Stdout, km, mode)
	}
	return writeBands(os.Stdout, km.Layout())
}

func writeBands(w io.Writer, l keymap.Layout) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BAND\tNOTES\tMODIFIER\tKIND\tKEYS")
	for _, b := range []keymap.Band{keymap.BandBase, keymap.BandLow, keymap.BandHigh} {
		bl := l.Band(b)
		if !bl.Present() {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\n", b)
			continue
		}
		kind := "diatonic"
		if bl.Chromatic {
			kind = "chromatic"
		}
		fmt.Fprintf(tw, "%s\t%s-%s\t%s\t%s\t%s\n", b, bl.Low.Name(), bl.High.Name(), keyOrDash(bl.Modifier), kind, joinKeys(bl.Keys, " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nblack modifier: %s\ntranspose up: %s\ntranspose down: %s\n",
		keyOrDash(l.BlackModifier), keyOrDash(l.TransposeUp), keyOrDash(l.TransposeDown))
	return err
}

func writeNotes(w io.Writer, km *keymap.Map, mode scale.Mode) error {
	all := keymap.Ranges{Base: true, Low: true, High: true}
	enc := engine.RoleEncoder{Mode: mode}
	if mode == scale.ModeExperimental && !km.ExperimentalSupported() {
		enc.Mode = scale.ModeNormal
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NOTE\tBAND\tSTROKE")
	for n := scale.MinNote; ; n++ {
		if p, err := km.Resolve(n, all); err == nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", n, p.Band, formatStroke(enc.Encode(km, p)))
		}
		if n == scale.MaxNote {
			break
		}
	}
	return tw.Flush()
}

// formatStroke renders a stroke as e.g. "tap Up, hold LeftCtrl+1, tap Down".
func formatStroke(s engine.Stroke) string {
	var parts []string
	if len(s.Lead) > 0 {
		parts = append(parts, "tap "+joinKeys(s.Lead, ","))
	}
	parts = append(parts, "hold "+joinKeys(s.Hold, "+"))
	if len(s.Trail) > 0 {
		parts = append(parts, "tap "+joinKeys(s.Trail, ","))
	}
	return strings.Join(parts, ", ")
}

func joinKeys(keys []keyboard.Key, sep string) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return strings.Join(names, sep)
}

func keyOrDash(k keyboard.Key) string {
	if k == keyboard.KeyNone {
		return "-"
	}
	return k.String()
}

type LayoutExport struct {
	Layout string `help:"Layout file to convert; defaults to the one run would use" type:"path" env:"MIDIKEYS_LAYOUT"`
	Format string `help:"Output format" enum:"json,yaml,toml" default:"json"`
	Output string `help:"Destination file path; - writes to stdout" default:"-"`
	Force  bool   `help:"Overwrite if the file already exists"`
}

func (c *LayoutExport) Run() error {
	km, _, err := loadKeymap(c.Layout)
	if err != nil {
		return err
	}
	data, err := keymap.Encode(km.Layout(), c.Format)
	if err != nil {
		return err
	}
	if c.Output == "-" || c.Output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if !c.Force {
		if _, err := os.Stat(c.Output); err == nil {
			return errors.New("destination exists; use --force to overwrite")
		}
	}
	if err := configpaths.EnsureDir(c.Output); err != nil {
		return err
	}
	return os.WriteFile(c.Output, data, 0o644)
}
