package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"SIKON-backend/internal/attendance"
	"SIKON-backend/internal/equipment"
	"SIKON-backend/internal/notify"
	"SIKON-backend/internal/platform/apidocs"
	"SIKON-backend/internal/platform/auth"
	"SIKON-backend/internal/platform/config"
	"SIKON-backend/internal/platform/db"
	"SIKON-backend/internal/platform/i18n"
	"SIKON-backend/internal/platform/reqlog"
	"SIKON-backend/internal/platform/storage"
	"SIKON-backend/internal/projects"
	"SIKON-backend/internal/rab"
	"SIKON-backend/internal/scheduler"
	"SIKON-backend/internal/users"
)

func main() {
	// config
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		log.Fatalf("[FATAL] config: %v", err)
	}
	log.Printf("[INFO] mode:%s version:%s", cfg.Mode, cfg.Version)

	loc, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		log.Fatalf("[FATAL] timezone: %v", err)
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("[FATAL] db: %v", err)
	}
	defer conn.Close()
	log.Printf("[INFO] connected to DB: %s", cfg.DB.DBName)

	i18n.Init(cfg.Locale)
	attendance.RegisterValidators()
	rab.RegisterValidators()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ===== storage =====
	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("[FATAL] storage: %v", err)
	}
	uploader := &storage.Uploader{
		Storage:   store,
		MaxWidth:  cfg.Storage.MaxImageWidth,
		MaxHeight: cfg.Storage.MaxImageHeight,
		Quality:   cfg.Storage.JPEGQuality,
		MaxBytes:  cfg.Storage.MaxUploadMB << 20,
	}

	// ===== notifications =====
	var pusher notify.Pusher
	if p, err := notify.NewFCMPusher(ctx, cfg.Notify.FirebaseCredentials); err != nil {
		log.Printf("[WARN] push notifications disabled: %v", err)
	} else {
		pusher = p
	}
	var deliveries notify.DeliveryLog
	if cfg.Mongo.URI != "" {
		ml, err := notify.NewMongoDeliveryLog(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			log.Printf("[WARN] delivery log disabled: %v", err)
		} else {
			deliveries = ml
			defer func() {
				cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = ml.Close(cctx)
			}()
		}
	}
	tokenStore := notify.NewStore(conn)
	dispatcher := notify.NewDispatcher(tokenStore, pusher, deliveries)
	queue := notify.NewQueue(dispatcher, notify.QueueConfig{
		Size:        cfg.Notify.QueueSize,
		Workers:     cfg.Notify.Workers,
		MaxRetries:  cfg.Notify.MaxRetries,
		BaseBackoff: cfg.Notify.BaseBackoff,
	})
	queue.Start(context.Background())

	// ===== services =====
	authSvc := auth.NewService(auth.NewStore(conn), []byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	userSvc := users.NewService(users.NewStore(conn))
	projectSvc := projects.NewService(projects.NewStore(conn))
	attendanceSvc := attendance.NewService(attendance.NewStore(conn), projectSvc, queue, loc)
	rabSvc := rab.NewService(rab.NewStore(conn), projectSvc, queue)
	equipmentSvc := equipment.NewService(equipment.NewStore(conn), projectSvc)
	notifySvc := notify.NewService(tokenStore, dispatcher)

	// ===== scheduled jobs =====
	sched, err := scheduler.New(loc,
		scheduler.ReapTokensJob(cfg.Notify.ReaperSchedule, dispatcher, time.Duration(cfg.Notify.StaleTokenDays)*24*time.Hour),
		scheduler.CloseIncompleteJob(cfg.Notify.IncompleteSchedule, attendanceSvc),
	)
	if err != nil {
		log.Fatalf("[FATAL] scheduler: %v", err)
	}
	sched.Start()

	// ===== HTTP =====
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(reqlog.Middleware(), i18n.Middleware(), gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)
	r.MaxMultipartMemory = 8 << 20

	if cfg.Mode == config.ModeDev {
		// CORS is only needed for the dev frontend
		origins := cfg.Server.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000"}
		}
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// health
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	apidocs.Register(r, cfg.Mode == config.ModeDev)
	if ls, ok := store.(*storage.LocalStorage); ok {
		r.Static(cfg.Storage.PublicBaseURL, ls.Root())
	}

	api := r.Group("/api")
	authed := api.Group("", auth.RequireAuth([]byte(cfg.Auth.JWTSecret)))
	mgr := authed.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleProjectManager))
	budget := authed.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleProjectManager, auth.RoleSiteManager, auth.RoleFinance))
	site := authed.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleProjectManager, auth.RoleSiteManager))
	admin := authed.Group("", auth.RequireRole(auth.RoleAdmin))

	auth.RegisterRoutes(api, authed, authSvc)
	users.RegisterRoutes(admin, userSvc)
	projects.RegisterRoutes(authed, mgr, projectSvc)
	attendance.RegisterRoutes(authed, mgr, attendanceSvc, uploader)
	rab.RegisterRoutes(authed, budget, rabSvc)
	equipment.RegisterRoutes(authed, site, equipmentSvc)
	notify.RegisterRoutes(authed, notifySvc)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// TLS
	certDir := filepath.Join("config", "tls", cfg.Mode)
	certFile := filepath.Join(certDir, cfg.Server.Certificate.Cert)
	keyFile := filepath.Join(certDir, cfg.Server.Certificate.Key)
	useTLS := cfg.Server.Certificate.Cert != "" && cfg.Server.Certificate.Key != ""

	go func() {
		var err error
		if useTLS {
			log.Printf("[INFO] listening on https://%s", cfg.Server.Addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			log.Printf("[INFO] listening on http://%s", cfg.Server.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Println("[INFO] shutting down...")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Printf("[ERROR] http shutdown: %v", err)
	}
	sched.Stop(sctx)
	queue.Stop()
}
