package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var messagesLimit int

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List a user's conversations",
	Long: `List conversations for a user, pinned first, most recently updated
first within each group.

Examples:
  studychatctl conversations --user alice`,
	RunE: runConversations,
}

var messagesCmd = &cobra.Command{
	Use:   "messages <conversation-id>",
	Short: "Show the messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runMessages,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	messagesCmd.Flags().IntVarP(&messagesLimit, "limit", "n", 0, "max messages (0 = all)")
}

func runConversations(cmd *cobra.Command, args []string) error {
	convs, err := st.ListConversations(context.Background(), requireUser())
	if err != nil {
		return err
	}

	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return nil
	}
	for _, c := range convs {
		pin := " "
		if c.Pinned {
			pin = "*"
		}
		fmt.Printf("%s %-36s  %-40s  %s\n", pin, c.ID, c.Title, c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runMessages(cmd *cobra.Command, args []string) error {
	msgs, err := st.ListMessages(context.Background(), args[0], 0, messagesLimit)
	if err != nil {
		return err
	}

	for _, m := range msgs {
		fmt.Printf("[%s] %s\n", m.Role, m.Content)
		if verbose && m.Usage != nil {
			fmt.Printf("      tokens: in=%d out=%d total=%d\n", m.Usage.InputTokens, m.Usage.OutputTokens, m.Usage.Total())
		}
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := st.DeleteConversation(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted conversation %s\n", args[0])
	return nil
}
