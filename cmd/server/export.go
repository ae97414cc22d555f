package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/timesheet-engine/timesheet"
)

type exportOptions struct {
	projectCodes []string
	month        string
	out          string
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var eo exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the monthly timesheet export as a zip",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			month := a.service.CurrentMonth()
			if eo.month != "" {
				if month, err = timesheet.ParseMonth(eo.month); err != nil {
					return err
				}
			}
			out := eo.out
			if out == "" {
				out = "timesheets_" + month.String() + ".zip"
			}

			export, err := a.exporter.Export(cmd.Context(), month, eo.projectCodes)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, export.Archive, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			for _, line := range export.StatusList() {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", out)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&eo.projectCodes, "project-code", nil, "Project code to export (repeatable)")
	cmd.Flags().StringVar(&eo.month, "month", "", "Month as YYYY-MM (default: current)")
	cmd.Flags().StringVarP(&eo.out, "out", "o", "", "Output file (default: timesheets_YYYY-MM.zip)")
	_ = cmd.MarkFlagRequired("project-code")
	return cmd
}
