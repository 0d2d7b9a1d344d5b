// SPDX-License-Identifier: MIT
package cmd

import (
	"chladni/internal/config"
	"chladni/internal/plate"
	"fmt"
	"io"
	"text/tabwriter"
)

// PrintModes writes the mode bank cfg describes as a table.
func PrintModes(w io.Writer, cfg *config.Config) error {
	bank, err := plate.NewBank(cfg.Frequencies())
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d plate modes, band ±%.0f Hz, Nyquist %.0f Hz\n\n",
		bank.Len(), cfg.Modes.WindowWidth, cfg.Nyquist())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tm\tn\tk\tfrequency (Hz)\t")
	for _, m := range bank.Modes() {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%.4f\t%.1f\t\n", m.Index, m.Angular, m.Radial, m.Wavenumber, m.Frequency)
	}
	return tw.Flush()
}
