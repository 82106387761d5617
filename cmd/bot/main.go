package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	discordrouter "github.com/goonworks/goonbot/internal/adapters/discord"
	"github.com/goonworks/goonbot/internal/app/service"
	"github.com/goonworks/goonbot/internal/infra/catalog"
	"github.com/goonworks/goonbot/internal/infra/config"
	"github.com/goonworks/goonbot/internal/infra/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const autosaveInterval = time.Minute

func main() {
	_ = godotenv.Load()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat, err := catalog.Load(cfg.PresetsPath)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("✅ catalog loaded (%d activities)", cat.Len())

	// Queue store: Postgres when DATABASE_URL is set, JSON snapshot
	// otherwise.
	var store service.QueueStore
	if cfg.DatabaseURL != "" {
		db, err := storage.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		defer db.Close()
		if err := storage.Migrate(db); err != nil {
			log.Fatal("migrate:", err)
		}
		store = storage.NewQueueRepo(db)
		log.Println("✅ DB ready and migrated")
	} else {
		store = storage.NewSnapshotStore(cfg.SnapshotPath)
		log.Printf("✅ queue snapshots at %s", cfg.SnapshotPath)
	}

	// Discord session
	auth := cfg.DiscordToken
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(auth)), "bot ") {
		auth = "Bot " + strings.TrimSpace(auth)
	}
	s, err := discordgo.New(auth)
	if err != nil {
		log.Fatal(err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages
	if err := s.Open(); err != nil {
		log.Fatal(err)
	}
	defer s.Close()
	log.Printf("✅ connected as %s (%s)", s.State.User.Username, s.State.User.ID)

	channels := service.ChannelIDs{
		General: cfg.GeneralChannelID,
		Sherpa:  cfg.SherpaChannelID,
		Queue:   cfg.QueueChannelID,
		LFG:     cfg.LFGChannelID,
	}

	// Services
	msgr := discordrouter.NewMessenger(s)
	perms := discordrouter.NewPerms(s, cfg.DiscordGuild, cfg.FounderUserID, cfg.SherpaRoleID)
	queueSvc := service.NewQueueService(store, cat, perms)
	if err := queueSvc.Load(ctx); err != nil {
		log.Fatal("load queues:", err)
	}
	go queueSvc.RunAutosave(ctx, autosaveInterval)

	eventSvc := service.NewEventService(cfg.DiscordGuild, channels, msgr, perms, queueSvc, service.NewNotifier(msgr))
	go service.NewScheduler(eventSvc, time.Minute).Run(ctx)

	// Router
	r := discordrouter.NewRouter(s, cfg.DiscordGuild, channels, cat, msgr, perms, queueSvc, eventSvc, cfg.SherpaRoleID)
	if err := r.Register(); err != nil {
		log.Fatalf("registering commands: %v", err)
	}
	r.Handlers()
	log.Printf("✅ commands registered in guild %s", cfg.DiscordGuild)

	// Wait for a signal, then flush the queues one last time.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-stop
	cancel()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := queueSvc.Save(flushCtx); err != nil {
		log.Printf("final queue snapshot: %v", err)
	}
}
