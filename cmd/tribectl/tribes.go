package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	tribesCmd := &cobra.Command{Use: "tribes", Short: "Tribe operations"}

	// create
	var name, creator string
	var private bool
	var minMembers, maxMembers int
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tribe",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || creator == "" {
				return fmt.Errorf("--name and --creator required")
			}
			payload := map[string]interface{}{
				"name":      name,
				"creatorId": creator,
				"private":   private,
			}
			if minMembers > 0 {
				payload["minMembers"] = minMembers
			}
			if maxMembers > 0 {
				payload["maxMembers"] = maxMembers
			}
			return call(client().R().SetBody(payload).Post("/v0/tribes"))
		},
	}
	createCmd.Flags().StringVarP(&name, "name", "n", "", "Tribe name (required)")
	createCmd.Flags().StringVarP(&creator, "creator", "c", "", "Creator member ID (required)")
	createCmd.Flags().BoolVar(&private, "private", false, "Private tribe")
	createCmd.Flags().IntVar(&minMembers, "min", 0, "Minimum member count")
	createCmd.Flags().IntVar(&maxMembers, "max", 0, "Maximum member count")
	tribesCmd.AddCommand(createCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get TRIBE_ID",
		Short: "Get tribe by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(client().R().Get("/v0/tribes/" + args[0]))
		},
	}
	tribesCmd.AddCommand(getCmd)

	// join
	var member string
	joinCmd := &cobra.Command{
		Use:   "join TRIBE_ID",
		Short: "Join a tribe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if member == "" {
				return fmt.Errorf("--member required")
			}
			return call(client().R().
				SetBody(map[string]interface{}{"memberId": member}).
				Post("/v0/tribes/" + args[0] + "/members"))
		},
	}
	joinCmd.Flags().StringVarP(&member, "member", "m", "", "Member ID (required)")
	tribesCmd.AddCommand(joinCmd)

	// leave
	leaveCmd := &cobra.Command{
		Use:   "leave TRIBE_ID MEMBER_ID",
		Short: "Leave a tribe",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(client().R().Delete("/v0/tribes/" + args[0] + "/members/" + args[1]))
		},
	}
	tribesCmd.AddCommand(leaveCmd)

	// members
	membersCmd := &cobra.Command{
		Use:   "members TRIBE_ID",
		Short: "List active members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(client().R().Get("/v0/tribes/" + args[0] + "/members"))
		},
	}
	tribesCmd.AddCommand(membersCmd)

	// activity
	activityCmd := &cobra.Command{
		Use:   "activity TRIBE_ID",
		Short: "List recent tribe activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(client().R().Get("/v0/tribes/" + args[0] + "/activity"))
		},
	}
	tribesCmd.AddCommand(activityCmd)

	// evaluate
	evaluateCmd := &cobra.Command{
		Use:   "evaluate TRIBE_ID",
		Short: "Run the lifecycle evaluation now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(client().R().Post("/v0/tribes/" + args[0] + "/evaluate"))
		},
	}
	tribesCmd.AddCommand(evaluateCmd)

	rootCmd.AddCommand(tribesCmd)
}
