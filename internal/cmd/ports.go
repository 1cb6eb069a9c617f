package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/Alia5/midikeys/internal/midiin"
)

type Ports struct{}

// Run is called by Kong when the ports command is executed.
func (p *Ports) Run() error {
	ports, err := midiin.Ports()
	if err != nil {
		return err
	}
	return writePorts(os.Stdout, ports)
}

func writePorts(w io.Writer, ports []midiin.Port) error {
	if len(ports) == 0 {
		_, err := fmt.Fprintln(w, "no MIDI input ports found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tNAME")
	for _, p := range ports {
		fmt.Fprintf(tw, "%d\t%s\n", p.Number, p.Name)
	}
	return tw.Flush()
}
