package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/bher20/tariffmanager/internal/report"
	"github.com/bher20/tariffmanager/internal/storage"
)

var industriesCmd = &cobra.Command{
	Use:   "industries",
	Short: "List the industry catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		mod, err := storage.LastModified(cmd.Context(), a.store)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tNAME\tLAST MODIFIED")
		for _, ind := range a.catalog.List() {
			last := "-"
			if t, ok := mod[ind.Key]; ok {
				last = t.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", ind.Key, ind.Name, last)
		}
		return tw.Flush()
	},
}

var (
	showIndustry string
	showSection  string
	showRaw      bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Render a stored report section in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ind, err := a.catalog.Get(showIndustry)
		if err != nil {
			return err
		}
		if _, ok := report.Get(showSection); !ok {
			return fmt.Errorf("%w: %q", report.ErrUnknownSection, showSection)
		}

		doc, err := a.store.GetDocument(ctx, storage.DocumentKey(ind.Key, showSection, "md"))
		if err != nil {
			return err
		}
		if doc == nil {
			doc, err = a.store.GetDocument(ctx, storage.DocumentKey(ind.Key, showSection, "json"))
			if err != nil {
				return err
			}
			if doc == nil {
				return fmt.Errorf("%s/%s has not been generated", ind.Key, showSection)
			}
			var out bytes.Buffer
			if err := json.Indent(&out, doc.Body, "", "  "); err != nil {
				return err
			}
			fmt.Println(out.String())
			return nil
		}

		if showRaw {
			fmt.Print(string(doc.Body))
			return nil
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return err
		}
		out, err := r.Render(string(doc.Body))
		if err != nil {
			return err
		}
		fmt.Print(strings.TrimLeft(out, "\n"))
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&showIndustry, "industry", "", "industry key")
	showCmd.Flags().StringVar(&showSection, "section", "executive-summary", "section key")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print markdown without rendering")
	_ = showCmd.MarkFlagRequired("industry")
}
