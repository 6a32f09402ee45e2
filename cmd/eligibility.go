package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/laurakrama/DAG2024/internal/eligibility"
)

var (
	eligibilityKeys []string
	eligibilityJSON bool
)

var eligibilityCmd = &cobra.Command{
	Use:   "eligibility",
	Short: "Compute the APD and AUD areas of one or more properties",
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

		results := make([]*eligibility.Result, 0, len(eligibilityKeys))
		for _, key := range eligibilityKeys {
			res, err := svc.ForProperty(ctx, ws.Layers, key)
			if err != nil {
				return eris.Wrapf(err, "eligibility for %s", key)
			}
			results = append(results, res)
		}

		out := cmd.OutOrStdout()
		if eligibilityJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		for i, res := range results {
			if i > 0 {
				fmt.Fprintln(out)
			}
			printResult(out, res)
		}
		return nil
	},
}

// printResult writes the property summary shown beside the map.
func printResult(w io.Writer, res *eligibility.Result) {
	fmt.Fprintf(w, "Imóvel: %s\n", res.PropertyKey)
	if res.NoData {
		fmt.Fprintln(w, "  sem dados: imóvel ausente da camada de limites")
		return
	}
	fmt.Fprintf(w, "  Área total:              %10.2f km²\n", res.TotalKm2)
	fmt.Fprintf(w, "  APD:                     %10.2f km² (%.2f%%)\n", res.APDKm2, res.Shares.APD)
	fmt.Fprintf(w, "  AUD:                     %10.2f km² (%.2f%%)\n", res.AUDKm2, res.Shares.AUD)
	fmt.Fprintf(w, "  Inviabilidade para REDD: %10.2f km² (%.2f%%)\n", res.IneligibleKm2, res.Shares.Ineligible)
	if res.Missing != nil {
		fmt.Fprintf(w, "  camadas ausentes: %s\n", strings.Join(res.Missing.Layers, ", "))
	}
	for _, a := range res.Anomalies {
		fmt.Fprintf(w, "  anomalia %s: %s\n", a.Kind, a.Detail)
	}
}

func init() {
	eligibilityCmd.Flags().StringSliceVar(&eligibilityKeys, "property", nil, "property key (cod_imovel); repeatable")
	eligibilityCmd.Flags().BoolVar(&eligibilityJSON, "json", false, "print results as JSON")
	_ = eligibilityCmd.MarkFlagRequired("property")
	rootCmd.AddCommand(eligibilityCmd)
}
