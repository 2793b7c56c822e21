package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pageread/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the reader over a websocket",
	Long: paragraph(fmt.Sprintf("\n%s a websocket endpoint at /ws for browser extensions and other local clients, "+
		"plus a /health probe of the speech service.", keyword("Serve"))),
	Example: paragraph("pageread serve\npageread serve --addr 127.0.0.1:9000"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := loadSettings()
		a, err := newApp(s)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Error("Shutdown failed", "err", err)
			}
		}()
		a.watchConfig()

		srv := server.New(a.reader, a.client, server.Config{
			Addr:   s.ServerAddr,
			Logger: log.Default().WithPrefix("server"),
		})
		a.events.Add(srv)

		fmt.Fprintf(cmd.OutOrStdout(), "Listening on ws://%s/ws\n", s.ServerAddr)
		return srv.Run(ctx) //nolint:wrapcheck
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
