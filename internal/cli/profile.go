package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tailedflox9-maker/studychat/internal/models"
)

var profileDeactivate bool

var profileCmd = &cobra.Command{
	Use:   "profile [instruction]",
	Short: "Show or set a user's personalization profile",
	Long: `Without an argument, prints the user's active personalization profile.
With an instruction, saves it as the active profile. Use --deactivate to keep
the stored instruction but stop applying it.

Examples:
  studychatctl profile --user alice
  studychatctl profile --user alice "Prefer worked examples over theory"
  studychatctl profile --user alice --deactivate "Prefer worked examples over theory"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfile,
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	user := requireUser()

	if len(args) == 0 {
		profile, err := st.GetProfile(ctx, user)
		if err != nil {
			return err
		}
		if profile == nil {
			fmt.Println("No active profile.")
			return nil
		}
		fmt.Println(profile.Instruction)
		return nil
	}

	profile := &models.PersonalizationProfile{
		UserID:      user,
		Instruction: args[0],
		Active:      !profileDeactivate,
	}
	if err := st.UpsertProfile(ctx, profile); err != nil {
		return err
	}
	fmt.Println("Profile saved.")
	return nil
}

func init() {
	profileCmd.Flags().BoolVar(&profileDeactivate, "deactivate", false, "save without applying")
}
