package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matsen/publications/internal/server"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin HTTP server",
	Long: `Run the admin HTTP server.

Endpoints:
  POST /import         BibTeX in form field "bibliography" or file "upload" (.bib or .bib.xz)
  GET  /publications   ?q=search ?batch=id ?limit=n ?style=harvard
  GET  /types
  GET  /healthz

Requests other than /healthz need HTTP basic auth when
server.admin_password_hash is set (see 'pubs hash-password').`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	root := mustFindLibrary()
	cfg := mustLoadConfig(root)
	logger := newLogger(cfg)

	db := mustOpenDatabase(root)
	defer db.Close()

	srvCfg := cfg.Server
	if serveAddr != "" {
		srvCfg.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(srvCfg, server.Deps{Library: db, Logger: logger, Legacy: cfg.Legacy})
	return srv.ListenAndServe(ctx)
}
