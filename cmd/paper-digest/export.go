package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-digest/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump all stored papers as YAML or JSON",
	Long: `Export writes every stored paper, newest first, to stdout or to a file.
The default format is YAML; use --format json for JSON.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("format", "yaml", "output format: yaml or json")
	exportCmd.Flags().StringP("output", "o", "", "write to file instead of stdout")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	cfg := buildConfig()

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	papers, err := st.ExportAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading papers: %w", err)
	}

	var data []byte
	switch format {
	case "yaml":
		data, err = yaml.Marshal(papers)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
	case "json":
		data, err = json.MarshalIndent(papers, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown format %q (expected yaml or json)", format)
	}

	if output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	fmt.Fprintf(os.Stderr, "exported %d paper(s) to %s\n", len(papers), output)
	return nil
}
