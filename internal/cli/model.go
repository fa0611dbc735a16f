package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tailedflox9-maker/studychat/internal/models"
)

var modelCmd = &cobra.Command{
	Use:   "model [model-id]",
	Short: "Show or change the selected model",
	Long: `Without an argument, prints the currently selected model. With an
argument, persists it as the new selection.

Examples:
  studychatctl model
  studychatctl model gemini-2.0-flash`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModel,
}

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Wipe all data from the database (testing only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := dbClient.WipeData(context.Background()); err != nil {
			return err
		}
		fmt.Println("Database wiped.")
		return nil
	},
}

func runModel(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 0 {
		settings, err := st.LoadAPISettings(ctx, cfg.DefaultModel)
		if err != nil {
			return err
		}
		fmt.Println(settings.SelectedModel)
		return nil
	}

	if err := st.SaveAPISettings(ctx, &models.APISettings{SelectedModel: args[0]}); err != nil {
		return err
	}
	fmt.Printf("Selected model: %s\n", args[0])
	return nil
}
