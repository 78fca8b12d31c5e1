package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/m3rciful/quicklink/internal/qrcodec"
)

func newQRCmd() *cobra.Command {
	var (
		out  string
		size int
	)
	cmd := &cobra.Command{
		Use:   "qr <text>",
		Short: "Print a QR code to the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			qrterminal.GenerateHalfBlock(text, qrterminal.M, cmd.OutOrStdout())
			if out == "" {
				return nil
			}
			png, err := qrcodec.New(size).Encode(text)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Also write the PNG to this path.")
	cmd.Flags().IntVar(&size, "size", qrcodec.DefaultSize, "PNG edge in pixels.")
	return cmd
}
