package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryTenant string
	threshold   float64
	notify      bool
	recipient   string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the tenant's jobs and resume",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			answer, err := a.rag.Ask(ctx, queryTenant, question)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), answer.Answer)
			return err
		})
	},
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "List the tenant's jobs that match the resume, optionally notifying the recipient",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApp(cmd, func(ctx context.Context, a *app) error {
			th := a.cfg.Matching.Threshold
			if cmd.Flags().Changed("threshold") {
				th = threshold
			}

			if !notify {
				matches, err := a.match.MatchJobs(ctx, queryTenant, th)
				if err != nil {
					return err
				}
				return printJSON(cmd, matches)
			}

			svc, err := a.notifier()
			if err != nil {
				return err
			}
			report, err := svc.Run(ctx, queryTenant, recipient, th)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{askCmd, matchCmd} {
		c.Flags().StringVarP(&queryTenant, "tenant", "t", "", "tenant id")
		_ = c.MarkFlagRequired("tenant")
		rootCmd.AddCommand(c)
	}

	matchCmd.Flags().Float64Var(&threshold, "threshold", 0, "minimum score in [0,1] (default matching.threshold)")
	matchCmd.Flags().BoolVar(&notify, "notify", false, "send one notification per match through notify.driver")
	matchCmd.Flags().StringVar(&recipient, "recipient", "", "notification recipient (required with --notify)")
}
