package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/pageread/internal/speech"
)

var (
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check that the speech service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := speech.NewClient(loadSettings().Speech)
			if err != nil {
				return err //nolint:wrapcheck
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), speech.HealthTimeout)
			defer cancel()
			if err := client.Health(ctx); err != nil {
				return fmt.Errorf("speech service at %s is unavailable: %w", client.BaseURL(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Speech service at %s is %s\n", client.BaseURL(), keyword("healthy"))
			return nil
		},
	}

	voicesCmd = &cobra.Command{
		Use:     "voices [QUERY]",
		Short:   "List the voices of the speech service",
		Long:    paragraph(fmt.Sprintf("\n%s the available voices, fuzzy-filtered by QUERY when given.", keyword("List"))),
		Example: paragraph("pageread voices\npageread voices heart"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := speech.NewClient(loadSettings().Speech)
			if err != nil {
				return err //nolint:wrapcheck
			}
			voices, err := client.Voices(cmd.Context())
			if err != nil {
				return fmt.Errorf("unable to list voices: %w", err)
			}

			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			for _, v := range speech.MatchVoices(voices, query) {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
)
