package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bher20/tariffmanager/internal/industries"
)

var (
	genIndustry  string
	genSections  []string
	regenCountry string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the report pipeline for one or every industry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		targets := a.catalog.List()
		if genIndustry != "" {
			ind, err := a.catalog.Get(genIndustry)
			if err != nil {
				return err
			}
			targets = []industries.Industry{ind}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		failed := 0
		for _, ind := range targets {
			res, err := a.pipeline.Run(ctx, ind, genSections...)
			if res != nil {
				_ = enc.Encode(res)
			}
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %v\n", ind.Key, err)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d industries failed", failed, len(targets))
		}
		return nil
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Regenerate the tariff updates of one industry, optionally for a single country",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		ind, err := a.catalog.Get(genIndustry)
		if err != nil {
			return err
		}
		res, err := a.tariffs.Update(ctx, ind, regenCountry)
		if err != nil {
			return err
		}
		for _, name := range res.StaleFallbacks() {
			fmt.Fprintf(os.Stderr, "warning: kept stored record for %s\n", name)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Updates)
	},
}

func init() {
	generateCmd.Flags().StringVar(&genIndustry, "industry", "", "industry key (default every industry)")
	generateCmd.Flags().StringSliceVar(&genSections, "sections", nil, "sections to run (default all)")

	regenerateCmd.Flags().StringVar(&genIndustry, "industry", "", "industry key")
	regenerateCmd.Flags().StringVar(&regenCountry, "country", "", "only regenerate this country")
	_ = regenerateCmd.MarkFlagRequired("industry")
}
