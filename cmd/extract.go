package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/laser-ci/internal/disambiguate"
	"github.com/sells-group/laser-ci/internal/extract"
	"github.com/sells-group/laser-ci/internal/model"
)

var (
	extractType    string
	extractProduct string
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract and split raw specs from a local page or datasheet",
	Long:  "Runs extraction and model disambiguation on one file and prints the per-model raw spec maps as JSON. Nothing is stored.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := extractFile(args[0], model.ContentType(extractType), extractProduct)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), groups)
	},
}

func extractFile(path string, ct model.ContentType, productName string) (map[string]model.RawSpecMap, error) {
	if !ct.Valid() {
		return nil, eris.Errorf("unsupported --type %q (want html or pdf_text)", ct)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	flat, err := extract.Extract(model.RawDocument{ID: path, ContentType: ct, Text: string(data)})
	if err != nil {
		return nil, err
	}
	return disambiguate.New().Split(flat, productName), nil
}

func init() {
	extractCmd.Flags().StringVar(&extractType, "type", string(model.ContentTypeHTML), "content type: html or pdf_text")
	extractCmd.Flags().StringVar(&extractProduct, "product", "", "product name used when the file describes a single model")
	rootCmd.AddCommand(extractCmd)
}
