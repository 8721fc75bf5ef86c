package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/cartflow/internal/auth"
	"github.com/joao-fontenele/cartflow/internal/config"
	"github.com/joao-fontenele/cartflow/internal/gateway"
	"github.com/joao-fontenele/cartflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8080")
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := config.Require(map[string]string{
		"SHOP_SERVICE_URL":      cfg.ShopServiceURL,
		"INVENTORY_SERVICE_URL": cfg.InventoryServiceURL,
		"JWT_SECRET":            cfg.JWTSecret,
	}); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, cfg.OTLPEndpoint, "gateway", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	shopProxy := gateway.NewServiceProxy(cfg.ShopServiceURL, httpClient)
	inventoryProxy := gateway.NewServiceProxy(cfg.InventoryServiceURL, httpClient)
	handler := gateway.NewHandler(shopProxy, inventoryProxy, logger)
	authn := gateway.NewAuthenticator(auth.NewTokenValidator(cfg.JWTSecret), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(authn.Require(handler.HandleShop)))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(authn.Require(handler.HandleShop)))
	mux.HandleFunc("PATCH /cart/items/{id}", telemetry.WithHTTPRoute(authn.Require(handler.HandleShop)))
	mux.HandleFunc("POST /checkout", telemetry.WithHTTPRoute(authn.Require(handler.HandleShop)))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(authn.Require(handler.HandleShop)))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(authn.Require(handler.HandleShop)))
	mux.HandleFunc("PATCH /orders/{id}/status", telemetry.WithHTTPRoute(authn.RequireAdmin(handler.HandleShop)))
	mux.HandleFunc("GET /inventory/stock", telemetry.WithHTTPRoute(handler.HandleInventory))
	mux.HandleFunc("GET /inventory/stock/{productId}", telemetry.WithHTTPRoute(handler.HandleInventory))

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "gateway",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
