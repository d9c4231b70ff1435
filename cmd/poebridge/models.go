package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/poebridge/pkg/capability"
	"mercator-hq/poebridge/pkg/cli"
)

var modelsFlags struct {
	catalog string
	format  string
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model catalog",
	Long: `List the models poebridge advertises, with the Poe bot each one maps to
and its capabilities. The built-in catalog is merged with --catalog when given.

Examples:
  poebridge models
  poebridge models --catalog models.yaml --format json`,
	Args: cobra.NoArgs,
	RunE: listModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)

	modelsCmd.Flags().StringVar(&modelsFlags.catalog, "catalog", "", "catalog overlay file")
	modelsCmd.Flags().StringVar(&modelsFlags.format, "format", "text", "output format: text, json")
}

type modelRow struct {
	ID           string `json:"id"`
	Bot          string `json:"bot"`
	OwnedBy      string `json:"owned_by"`
	NativeTools  bool   `json:"native_tools"`
	ImageCapable bool   `json:"image_capable"`
	MaxContext   int    `json:"max_context,omitempty"`
}

type modelList []modelRow

func (l modelList) Header() []string {
	return []string{"ID", "BOT", "OWNER", "TOOLS", "IMAGES", "CONTEXT"}
}

func (l modelList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, m := range l {
		ctx := "-"
		if m.MaxContext > 0 {
			ctx = strconv.Itoa(m.MaxContext)
		}
		rows = append(rows, []string{
			m.ID, m.Bot, m.OwnedBy,
			strconv.FormatBool(m.NativeTools),
			strconv.FormatBool(m.ImageCapable),
			ctx,
		})
	}
	return rows
}

func listModels(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(modelsFlags.format)
	if err != nil {
		return err
	}

	table, err := capability.Load(modelsFlags.catalog, false)
	if err != nil {
		return cli.NewConfigError(modelsFlags.catalog, err)
	}

	entries := table.List()
	list := make(modelList, 0, len(entries))
	for _, c := range entries {
		list = append(list, modelRow{
			ID:           c.ID,
			Bot:          c.BackendName,
			OwnedBy:      c.OwnedBy,
			NativeTools:  c.NativeTools,
			ImageCapable: c.ImageCapable,
			MaxContext:   c.MaxContext,
		})
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), list)
}
