package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/lfarias/chatrelay/pkg/logging"
	"github.com/lfarias/chatrelay/pkg/server"
	"github.com/lfarias/chatrelay/pkg/store"
	"github.com/lfarias/chatrelay/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP bind address")
	flag.StringVar(&cfg.FilesDir, "files", cfg.FilesDir, "Directory for server-side copies of relayed files")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database file path")
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	flag.StringVar(&cfg.GroupsFile, "groups-file", "", "YAML file defining groups to create on startup")
	flag.BoolVar(&cfg.ExportGroups, "export-groups", false, "Export all groups as YAML and exit")
	flag.BoolVar(&cfg.ExportTransfers, "export-transfers", false, "Export the file transfer log as YAML and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}

	// Handle export commands (run and exit)
	if cfg.ExportGroups || cfg.ExportTransfers {
		defer func() { _ = st.Close() }()

		if cfg.ExportGroups {
			data, err := server.ExportGroupsYAML(st)
			if err != nil {
				slog.Error("export groups", "err", err)
				os.Exit(1)
			}
			fmt.Print(string(data))
		}
		if cfg.ExportTransfers {
			data, err := server.ExportTransfersYAML(st)
			if err != nil {
				slog.Error("export transfers", "err", err)
				os.Exit(1)
			}
			fmt.Print(string(data))
		}
		return
	}

	srv := server.New(cfg, server.Dependencies{Store: st})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
