package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EmanAguilera/FiamBond-sub000/internal/api"
	"github.com/EmanAguilera/FiamBond-sub000/internal/config"
	"github.com/EmanAguilera/FiamBond-sub000/internal/service"
	"github.com/EmanAguilera/FiamBond-sub000/internal/store"
	"github.com/EmanAguilera/FiamBond-sub000/internal/upload"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Layers
	var (
		ledger    service.Store
		directory service.Directory
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		mem := store.NewMemory()
		seedDemoUsers(mem, cfg.SeedUsers)
		ledger, directory = mem, mem
		log.Printf("Using in-memory store (%s)", cfg.Env)
	default:
		dbPool, err := store.Connect(ctx, cfg.DBSource)
		if err != nil {
			log.Fatalf("Unable to connect to database: %v", err)
		}
		defer dbPool.Close()

		if cfg.AutoMigrate {
			if err := store.Migrate(ctx, dbPool); err != nil {
				log.Fatalf("Migration failed: %v", err)
			}
		}
		pg := store.NewPostgres(dbPool)
		ledger, directory = pg, pg
	}

	var opts []service.Option
	if cfg.UploadURL != "" {
		opts = append(opts, service.WithUploader(upload.NewHTTPUploader(cfg.UploadURL, cfg.UploadPreset)))
	} else {
		log.Println("UPLOAD_URL not set, file uploads are disabled")
	}
	loans := service.NewLoanService(ledger, directory, opts...)
	handler := api.NewHandler(loans, cfg.RequestTimeout)

	// Router
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler).Methods(http.MethodGet)
	handler.Routes(r.PathPrefix("/api/v1").Subrouter())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// seedDemoUsers mirrors cmd/seeder's naming and defaults so cmd/benchmark
// works against either store.
func seedDemoUsers(mem *store.Memory, n int) {
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("user-%04d", i)
		mem.AddUser(id, fmt.Sprintf("User %d", i))
		mem.AddFamilyMember(fmt.Sprintf("family-%03d", (i-1)/4+1), id)
	}
}
