// Command nettabled runs a NetworkTables server: the Storage engine, a
// websocket transport, and a periodic persistent-save loop.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hollowcore/nettable/config"
	"github.com/hollowcore/nettable/nettransport"
	"github.com/hollowcore/nettable/notifier"
	"github.com/hollowcore/nettable/persist"
	"github.com/hollowcore/nettable/rpcserver"
	"github.com/hollowcore/nettable/storage"
)

var configFile string

func main() {
	root := &cobra.Command{Use: "nettabled"}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml/json/toml)")
	root.AddCommand(serveCmd(), saveCmd(), loadCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the NetworkTables server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			return runServer(cfg)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "override the configured listen address")
	return cmd
}

func runServer(cfg config.Config) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	n := notifier.New(0)
	defer n.Close()
	rpc := rpcserver.New()
	engine := storage.New(n, rpc, log)

	fs := afero.NewOsFs()
	if exists, _ := afero.Exists(fs, cfg.PersistPath); exists {
		entries, err := persist.Load(fs, cfg.PersistPath, func(line int, msg string) {
			log.Warn("persistent load warning", "line", line, "msg", msg)
		})
		if err != nil {
			log.Error("failed to load persistent file, starting empty", "err", err)
		} else {
			engine.LoadPersistent(toSnapshots(entries))
		}
	}

	hub := nettransport.NewHub(engine, true, log)
	engine.SetDispatcher(hub, true)
	hub.AddConnectionListener(func(ev nettransport.ConnectionEvent) {
		log.Info("connection event", "id", ev.Conn.ID, "connected", ev.Connected)
	})

	stop := make(chan struct{})
	go persistLoop(engine, fs, cfg.PersistPath, cfg.PersistInterval, log, stop)
	defer close(stop)

	mux := http.NewServeMux()
	mux.Handle("/nt", hub)
	log.Info("listening", "addr", cfg.ListenAddr)
	return http.ListenAndServe(cfg.ListenAddr, mux)
}

func persistLoop(engine *storage.Storage, fs afero.Fs, path string, interval time.Duration, log *slog.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !engine.IsPersistentDirty() {
				continue
			}
			engine.ClearPersistentDirty()
			if err := persist.Save(fs, path, toPersistEntries(engine.SnapshotPersistent())); err != nil {
				log.Error("persistent save failed, will retry", "err", err)
				engine.MarkPersistentDirty()
			}
		}
	}
}

func toSnapshots(entries []persist.Entry) []storage.PersistentSnapshot {
	out := make([]storage.PersistentSnapshot, len(entries))
	for i, e := range entries {
		out[i] = storage.PersistentSnapshot{Name: e.Name, Value: e.Value, Flags: storage.FlagPersistent}
	}
	return out
}

func toPersistEntries(snaps []storage.PersistentSnapshot) []persist.Entry {
	out := make([]persist.Entry, len(snaps))
	for i, s := range snaps {
		out[i] = persist.Entry{Name: s.Name, Value: s.Value, Flags: uint32(s.Flags)}
	}
	return out
}

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [path]",
		Short: "validate that a persistent file round-trips cleanly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			entries, err := persist.Load(fs, args[0], func(line int, msg string) {
				fmt.Fprintf(os.Stderr, "line %d: %s\n", line, msg)
			})
			if err != nil {
				return err
			}
			return persist.Save(fs, args[0], entries)
		},
	}
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [path]",
		Short: "parse and print a persistent file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			entries, err := persist.Load(fs, args[0], func(line int, msg string) {
				fmt.Fprintf(os.Stderr, "line %d: %s\n", line, msg)
			})
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s: %v\n", e.Name, e.Value.Type())
			}
			return nil
		},
	}
}
