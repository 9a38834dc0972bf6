package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brunogmenezes/financeiro/api"
	"github.com/brunogmenezes/financeiro/auth"
	"github.com/brunogmenezes/financeiro/config"
	"github.com/brunogmenezes/financeiro/ledger"
	"github.com/brunogmenezes/financeiro/notify"
	"github.com/brunogmenezes/financeiro/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "financeiro",
	Short: "Personal finance tracker",
	Long: `Financeiro tracks accounts, income and expense entries, and keeps
every account's running balance consistent with the entries posted
against it. Optionally sends WhatsApp reminders for unpaid expenses.`,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "financeiro.toml", "Path to TOML config file")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	engine := ledger.NewEngine(store, store)
	authSvc := auth.NewService(store, cfg.Auth.JWTSecret)
	handler := api.NewHandler(engine, store, authSvc, store)
	router := api.NewRouter(handler)

	// Reminder scheduler runs only when the WhatsApp gateway is configured.
	schedCtx, stopSched := context.WithCancel(context.Background())
	defer stopSched()
	if cfg.WhatsApp.Enabled {
		hour, minute, loc, err := cfg.ReminderSchedule()
		if err != nil {
			return err
		}
		client := notify.NewEvolutionClient(cfg.WhatsApp.URL, cfg.WhatsApp.Instance, cfg.WhatsApp.APIKey)
		scheduler := notify.NewScheduler(store, client, hour, minute, loc)
		go scheduler.Run(schedCtx)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Println("server stopped")
	return nil
}
