package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-preparsed/codec"
	"github.com/wippyai/wasm-preparsed/engine"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info artifact",
		Short: "Print an artifact header without decoding the body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			h, err := codec.Inspect(data)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "format\t%s v%d\n", codec.Magic, h.Version)
			fmt.Fprintf(w, "size\t%d bytes (body %d)\n", len(data), h.BodySize)
			fmt.Fprintf(w, "compressed\t%t\n", h.Compressed())
			fmt.Fprintf(w, "checksum\t%016x\n", h.Checksum)
			fmt.Fprintf(w, "consume_fuel\t%t\n", h.Config.ConsumeFuel)
			fmt.Fprintf(w, "compilation_mode\t%s\n", h.Config.CompilationMode)
			fmt.Fprintf(w, "features\t%s\n", engine.FormatFeatures(h.Config.Features))
			if h.Config.ConsumeFuel {
				c := h.Config.FuelCosts
				fmt.Fprintf(w, "fuel_costs\tbase=%d memory=%d call=%d bulk_bytes_per_fuel=%d\n",
					c.Base, c.Memory, c.Call, c.BulkBytesPerFuel)
			}
			return w.Flush()
		},
	}
}
