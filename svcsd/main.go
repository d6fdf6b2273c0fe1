package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/presbrey/services/admind"
	"github.com/presbrey/services/bot"
	"github.com/presbrey/services/chanacs"
	"github.com/presbrey/services/channel"
	"github.com/presbrey/services/chanserv"
	"github.com/presbrey/services/config"
	"github.com/presbrey/services/metadata"
	"github.com/presbrey/services/nickserv"
	"github.com/presbrey/services/protocol"
	"github.com/presbrey/services/reconcile"
	"github.com/presbrey/services/session"
	"github.com/presbrey/services/storage"
	"github.com/presbrey/services/wait"

	"github.com/presbrey/services/account"
)

func main() {
	configPath := flag.String("config", "services.yaml", "Configuration file path or URL")
	snapshotEvery := flag.Duration("snapshot", 5*time.Minute, "Database snapshot interval")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	caps := protocol.Lookup(cfg.Uplink.Protocol)

	log.Printf("Starting services with the following configuration:")
	log.Printf("Uplink: %s (protocol: %s, tls: %v)", cfg.GetUplinkAddress(), caps.Name, cfg.Uplink.TLS)
	log.Printf("Network: %s", cfg.Network.Name)
	log.Printf("Database: %s", cfg.Database.Path)
	log.Printf("Admin endpoint: %s (enabled: %v)", cfg.GetAdminListenAddress(), cfg.Admin.Enabled)

	dir := account.NewDirectory()
	meta := metadata.NewStore()
	access := chanacs.NewList()

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Load(dir, meta, access); err != nil {
		log.Fatalf("Failed to load database: %v", err)
	}
	log.Printf("Loaded %d accounts from database", dir.Count())

	live := channel.NewRegistry()
	sessions := session.NewRegistry(cfg.Network.MaxLogins)
	throttle := session.NewThrottle(meta)

	ns := nickserv.New(dir, meta, sessions, throttle, nil)
	ns.MaxNicks = cfg.Network.MaxNicks
	ns.NoNickOwnership = cfg.Network.NoNickOwnership
	ns.NetworkName = cfg.Network.Name
	cs := chanserv.New(access)

	b := bot.New(bot.Config{
		Server:       cfg.Uplink.Server,
		Port:         cfg.Uplink.Port,
		Nick:         cfg.Uplink.Nick,
		Password:     cfg.Uplink.Password,
		TLS:          cfg.Uplink.TLS,
		SnoopChannel: "#services",
		JoinChans:    cfg.Network.JoinChans,
	}, caps, ns, cs, live, sessions)
	b.Privs = cfg.PrivsFor

	ns.Engine = reconcile.NewEngine(caps, access, live, b, cfg.Network.JoinChans)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Admin.Enabled {
		admin := admind.New(dir, sessions, access)
		go func() {
			if err := admin.Start(cfg.GetAdminListenAddress()); err != nil {
				log.Printf("Admin server error: %v", err)
			}
		}()
		defer admin.Shutdown(context.Background())
	}

	// don't bother dialing until the uplink accepts TCP
	if err := wait.ForTCP(cfg.GetUplinkAddress(), wait.DefaultOptions().
		WithTimeout(2*time.Minute).
		WithStrategy(wait.NewExponentialBackoffStrategy(time.Second, 2, 30*time.Second, true))); err != nil {
		log.Printf("Warning: uplink not reachable yet: %v", err)
	}

	go func() {
		if err := b.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Uplink loop ended: %v", err)
		}
	}()

	// periodic snapshots keep the database close to the in-memory state
	go func() {
		ticker := time.NewTicker(*snapshotEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.Snapshot(dir, meta, access); err != nil {
					log.Printf("Snapshot failed: %v", err)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Services running. Press Ctrl+C to stop.")
	<-sigChan
	log.Println("Shutdown signal received, stopping...")

	cancel()
	b.Close()

	if err := db.Snapshot(dir, meta, access); err != nil {
		log.Printf("Final snapshot failed: %v", err)
	}

	log.Println("Services stopped. Goodbye!")
}
