package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/chorus/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()
			switch output {
			case "text":
				fmt.Fprintln(out, info.Text())
			case "json":
				s, err := info.ToJSONIndent()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, s)
			case "short":
				fmt.Fprintln(out, info.String())
			default:
				return fmt.Errorf("unknown output format %q (text, json, short)", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or short")
	return cmd
}
