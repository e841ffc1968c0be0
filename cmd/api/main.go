package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "fieldcrm/internal/api"
    "fieldcrm/internal/buildinfo"
    "fieldcrm/internal/config"
    "fieldcrm/internal/logging"
    "fieldcrm/internal/model"
    "fieldcrm/internal/store"
)

func main() {
    if err := run(); err != nil {
        fmt.Fprintf(os.Stderr, "api: %v\n", err)
        os.Exit(1)
    }
}

func run() error {
    cfg, err := config.Load()
    if err != nil { return fmt.Errorf("config: %w", err) }
    log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
    if err != nil { return err }
    defer func() { _ = log.Sync() }()

    srv, err := api.NewServer(cfg, log)
    if err != nil { return fmt.Errorf("init server: %w", err) }
    defer srv.Close()

    // Users belong to the auth service; seed a pair so the in-memory mode is usable.
    if mem, ok := srv.Store.(*store.Memory); ok {
        admin := mem.PutUser(model.User{Name: "Admin", Email: "admin@example.com", Role: model.RoleAdmin})
        rep := mem.PutUser(model.User{Name: "Demo Rep", Email: "rep@example.com", Role: model.RoleSalesRep})
        log.Info("in-memory store seeded", zap.Int64("admin_id", admin.ID), zap.Int64("rep_id", rep.ID))
    }

    httpSrv := &http.Server{
        Addr:              ":" + cfg.Port,
        Handler:           srv.Routes(),
        ReadHeaderTimeout: 5 * time.Second,
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    errCh := make(chan error, 1)
    go func() {
        log.Info("API listening",
            zap.String("addr", httpSrv.Addr),
            zap.String("version", buildinfo.Version),
            zap.String("broker", cfg.Broker),
            zap.String("auth_mode", cfg.AuthMode))
        if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            errCh <- err
        }
        close(errCh)
    }()

    select {
    case err, ok := <-errCh:
        if ok { return fmt.Errorf("server error: %w", err) }
        return nil
    case <-ctx.Done():
    }

    log.Info("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    return httpSrv.Shutdown(shutdownCtx)
}
