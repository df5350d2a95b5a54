package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	messagesCmd := &cobra.Command{Use: "messages", Short: "Message operations"}

	// send
	var member, content string
	sendCmd := &cobra.Command{
		Use:   "send TRIBE_ID",
		Short: "Send a text message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if member == "" || content == "" {
				return fmt.Errorf("--member and --content required")
			}
			return call(client().R().
				SetBody(map[string]interface{}{"memberId": member, "content": content}).
				Post("/v0/tribes/" + args[0] + "/messages"))
		},
	}
	sendCmd.Flags().StringVarP(&member, "member", "m", "", "Sender member ID (required)")
	sendCmd.Flags().StringVarP(&content, "content", "c", "", "Message text (required)")
	messagesCmd.AddCommand(sendCmd)

	// list
	var limit int
	var beforeID string
	listCmd := &cobra.Command{
		Use:   "list TRIBE_ID",
		Short: "List messages newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client().R().SetQueryParam("limit", strconv.Itoa(limit))
			if beforeID != "" {
				req.SetQueryParam("beforeId", beforeID)
			}
			return call(req.Get("/v0/tribes/" + args[0] + "/messages"))
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "l", 50, "Max messages to return")
	listCmd.Flags().StringVar(&beforeID, "before", "", "Page before this message ID")
	messagesCmd.AddCommand(listCmd)

	// search
	var query string
	searchCmd := &cobra.Command{
		Use:   "search TRIBE_ID",
		Short: "Search message content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" {
				return fmt.Errorf("--query required")
			}
			return call(client().R().
				SetQueryParam("q", query).
				Get("/v0/tribes/" + args[0] + "/messages/search"))
		},
	}
	searchCmd.Flags().StringVarP(&query, "query", "q", "", "Search text (required)")
	messagesCmd.AddCommand(searchCmd)

	// unread
	unreadCmd := &cobra.Command{
		Use:   "unread TRIBE_ID MEMBER_ID",
		Short: "Unread message count for a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(client().R().Get("/v0/tribes/" + args[0] + "/members/" + args[1] + "/unread"))
		},
	}
	messagesCmd.AddCommand(unreadCmd)

	// mark-read
	markReadCmd := &cobra.Command{
		Use:   "mark-read TRIBE_ID MEMBER_ID [MESSAGE_ID...]",
		Short: "Mark messages read (all when no IDs given)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"all": len(args) == 2}
			if len(args) > 2 {
				payload["messageIds"] = args[2:]
			}
			return call(client().R().
				SetBody(payload).
				Post("/v0/tribes/" + args[0] + "/members/" + args[1] + "/read"))
		},
	}
	messagesCmd.AddCommand(markReadCmd)

	// delete
	var requester string
	deleteCmd := &cobra.Command{
		Use:   "delete MESSAGE_ID",
		Short: "Delete an own message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if requester == "" {
				return fmt.Errorf("--member required")
			}
			return call(client().R().
				SetQueryParam("memberId", requester).
				Delete("/v0/messages/" + args[0]))
		},
	}
	deleteCmd.Flags().StringVarP(&requester, "member", "m", "", "Requesting member ID (required)")
	messagesCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(messagesCmd)
}
