package main

import "github.com/spf13/cobra"

func init() {
	engageCmd := &cobra.Command{Use: "engage", Short: "Engagement operations"}

	recommendCmd := &cobra.Command{
		Use:   "recommend TRIBE_ID",
		Short: "Show recommended engagement type and weights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(client().R().Get("/v0/tribes/" + args[0] + "/engagements/recommend"))
		},
	}
	engageCmd.AddCommand(recommendCmd)

	createCmd := &cobra.Command{
		Use:   "create TRIBE_ID",
		Short: "Create an engagement and post its prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(client().R().Post("/v0/tribes/" + args[0] + "/engagements"))
		},
	}
	engageCmd.AddCommand(createCmd)

	respondCmd := &cobra.Command{
		Use:   "respond ENGAGEMENT_ID",
		Short: "Record a member response to an engagement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(client().R().Post("/v0/engagements/" + args[0] + "/responses"))
		},
	}
	engageCmd.AddCommand(respondCmd)

	rootCmd.AddCommand(engageCmd)
}
