package main

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/showdeck/access/internal/audit"
	"github.com/showdeck/access/internal/config"
	"github.com/showdeck/access/internal/database"
	"github.com/showdeck/access/internal/delivery"
	"github.com/showdeck/access/internal/handler"
	"github.com/showdeck/access/internal/limiter"
	"github.com/showdeck/access/internal/model"
	"github.com/showdeck/access/internal/queue"
	"github.com/showdeck/access/internal/repository/mysql"
	"github.com/showdeck/access/internal/router"
	"github.com/showdeck/access/internal/service"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	store := mysql.New(db)

	// Rate limiters: shared windows when Redis is reachable, otherwise
	// per-process windows with identical semantics.
	var actorLim, destLim, intakeLim limiter.Limiter
	if rdb := config.NewRedisClient(cfg.RedisAddr, os.Getenv("REDIS_PASSWORD"), 0); rdb != nil {
		actorLim = limiter.NewRedisWindow(rdb, "rl:actor", cfg.ActorLimit, cfg.ActorWindow)
		destLim = limiter.NewRedisWindow(rdb, "rl:dest", cfg.DestLimit, cfg.DestWindow)
		intakeLim = limiter.NewRedisWindow(rdb, "rl:intake", cfg.IntakeLimit, cfg.ActorWindow)
	} else {
		log.Printf("redis unavailable, using in-memory rate limits")
		actorLim = limiter.NewSlidingWindow(cfg.ActorLimit, cfg.ActorWindow)
		destLim = limiter.NewSlidingWindow(cfg.DestLimit, cfg.DestWindow)
		intakeLim = limiter.NewSlidingWindow(cfg.IntakeLimit, cfg.ActorWindow)
	}

	rec := audit.NewRecorder(store).WithMirror(os.Stdout)
	gateway := delivery.LogGateway{}

	identity := service.NewIdentityService(store, store, store, rec)
	admin := service.NewAdminService(store, store, actorLim, rec)
	wf := service.NewWorkflowService(store, store, store, gateway, destLim, actorLim,
		rec, parseDestinations(cfg.AdminDestinations))

	// Admin-notification handoff: broker when configured, goroutine when not.
	if cfg.AMQPURL != "" {
		wf.SetNotifier(queue.NewPublisher(cfg.AMQPURL))
		go queue.StartRequestConsumer(cfg.AMQPURL, wf.NotifyAdmins)
	} else {
		log.Printf("rabbitmq not configured, running fan-out in-process")
		wf.SetNotifier(service.NewGoNotifier(wf.NotifyAdmins))
	}

	e := echo.New()
	router.Register(e,
		handler.NewAuthHandler(cfg, identity),
		handler.NewAdminHandler(admin, store, store),
		handler.NewRequestHandler(wf),
		identity, intakeLim, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// parseDestinations turns "sms:+15551234567,email:ops@example.com" entries
// into typed destinations. Entries without a channel prefix default to SMS.
func parseDestinations(raw []string) []service.AdminDestination {
	var out []service.AdminDestination
	for _, entry := range raw {
		channel := model.ChannelSMS
		dest := entry
		if i := strings.IndexByte(entry, ':'); i > 0 {
			switch strings.ToLower(entry[:i]) {
			case "email":
				channel = model.ChannelEmail
				dest = entry[i+1:]
			case "sms":
				dest = entry[i+1:]
			}
		}
		out = append(out, service.AdminDestination{Destination: dest, Channel: channel})
	}
	return out
}
