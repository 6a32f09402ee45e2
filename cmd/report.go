package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/laurakrama/DAG2024/internal/eligibility"
	"github.com/laurakrama/DAG2024/internal/report"
)

var (
	reportKeys []string
	reportOut  string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write eligibility results and filtered events to an XLSX workbook",
	Long:  "Computes eligibility for the given properties (every property when --property is omitted) and writes it, with the events matching the filter flags, to an XLSX workbook.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		svc, err := newService(cfg)
		if err != nil {
			return err
		}

		keys := reportKeys
		if len(keys) == 0 {
			keys = ws.Layers.PropertyKeys()
		}

		rep := report.Report{Results: make([]*eligibility.Result, 0, len(keys))}
		for _, key := range keys {
			res, err := svc.ForProperty(ctx, ws.Layers, key)
			if err != nil {
				return eris.Wrapf(err, "eligibility for %s", key)
			}
			rep.Results = append(rep.Results, res)
		}

		cr, err := eventCriteria(cmd.Flags(), ws.Events)
		if err != nil {
			return err
		}
		if rep.Events, err = ws.Events.Filter(cr); err != nil {
			return err
		}

		if err := rep.Save(reportOut); err != nil {
			return err
		}
		zap.L().Info("report written",
			zap.String("path", reportOut),
			zap.Int("properties", len(rep.Results)),
			zap.Int("events", len(rep.Events)),
		)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringSliceVar(&reportKeys, "property", nil, "property key (cod_imovel); repeatable (default: all)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "output .xlsx path (required)")
	_ = reportCmd.MarkFlagRequired("out")
	addEventFlags(reportCmd.Flags())
	rootCmd.AddCommand(reportCmd)
}
