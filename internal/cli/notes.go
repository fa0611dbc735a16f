package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "List a user's notes",
	RunE:  runNotes,
}

func runNotes(cmd *cobra.Command, args []string) error {
	notes, err := st.ListNotes(context.Background(), requireUser())
	if err != nil {
		return err
	}

	if len(notes) == 0 {
		fmt.Println("No notes.")
		return nil
	}
	for _, n := range notes {
		fmt.Printf("%-36s  %s\n", n.ID, n.Title)
		if verbose {
			fmt.Printf("  %s\n", n.Content)
		}
	}
	return nil
}
