package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/punchamoorthee/wastebank/internal/member"
	"github.com/punchamoorthee/wastebank/internal/scan"
)

func newLookupCommand(open Opener) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "lookup [code]",
		Short: "Resolve member codes typed as an argument or scanned on stdin",
		Long: "With a code argument, prints that member. Without one, reads codes from a\n" +
			"keyboard-wedge QR/barcode scanner on stdin and prints each member until EOF.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeStore, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			resolver := member.NewResolver(s)
			if len(args) == 1 {
				return printMember(cmd, resolver, args[0])
			}
			return lookupScans(cmd, resolver, scan.NewLineDecoder(cmd.InOrStdin()), interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond, "poll interval between scan attempts")
	return cmd
}

func lookupScans(cmd *cobra.Command, resolver *member.Resolver, d scan.Decoder, interval time.Duration) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		ev, err := scan.Poll(ctx, d, interval)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := printMember(cmd, resolver, ev.Token); err != nil {
			return err
		}
	}
}

func printMember(cmd *cobra.Command, resolver *member.Resolver, code string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	m, err := resolver.ResolveByCode(ctx, code)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if m == nil {
		fmt.Fprintf(out, "%s\tnot found\n", code)
		return nil
	}
	fmt.Fprintf(out, "%s\t%s\t%d\n", m.Code, m.Name, m.Balance)
	return nil
}
