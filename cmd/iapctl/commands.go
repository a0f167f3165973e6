package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/xraph/iap/catalog"
	"github.com/xraph/iap/event"
	"github.com/xraph/iap/natsbridge"
	"github.com/xraph/iap/purchase"
	"github.com/xraph/iap/validator"
	"github.com/xraph/iap/webhook"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newValidateCommand(a *app) *cobra.Command {
	var (
		data     purchase.ValidationData
		platform string
		store    bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a receipt and print the verified purchases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			switch platform {
			case "ios", "apple":
				data.Platform = purchase.PlatformAppleAppStore
			case "android", "google":
				data.Platform = purchase.PlatformGooglePlay
			default:
				data.Platform = purchase.Platform(platform)
			}

			var opts []validator.Option
			opts = append(opts, validator.WithLogger(a.logger))
			if a.cfg.CatalogFile != "" {
				cat, err := catalog.LoadFile(a.cfg.CatalogFile)
				if err != nil {
					return err
				}
				opts = append(opts, validator.WithCatalog(cat))
				if data.ProductType == "" {
					data.ProductType = cat.Type(data.ProductID)
				}
			}

			res, err := validator.New(a.cfg.Validator.config(), opts...).Validate(ctx, data)
			if err != nil {
				return err
			}

			if store {
				s, err := openStore(ctx, a.cfg.Store)
				if err != nil {
					return err
				}
				defer s.Close()
				for _, v := range res.Collection {
					if v.ValidatedAt.IsZero() {
						v.ValidatedAt = res.Date
					}
					if err := s.AddPurchase(ctx, v); err != nil {
						a.logger.Warn("purchase not stored", "product_id", v.ProductID, "error", err)
					}
				}
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&platform, "platform", "ios", "store platform: ios or android")
	f.StringVar(&data.ProductID, "product", "", "product id")
	f.StringVar((*string)(&data.ProductType), "type", "", "product type; read from the catalog when empty")
	f.StringVar(&data.TransactionID, "transaction", "", "store transaction id")
	f.StringVar(&data.Receipt, "receipt", "", "App Store receipt or Play purchase JSON")
	f.StringVar(&data.PurchaseToken, "token", "", "Play purchase token")
	f.StringVar(&data.Signature, "signature", "", "Play receipt signature")
	f.StringVar(&data.ApplicationUsername, "username", "", "application username")
	f.BoolVar(&store, "store", false, "write the verified purchases to the configured store")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func newPurchasesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purchases",
		Short: "Inspect verified purchases in the configured store",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print every stored purchase",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx, a.cfg.Store)
			if err != nil {
				return err
			}
			defer s.Close()

			list, err := s.ListPurchases(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored purchase",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx, a.cfg.Store)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Reset(ctx); err != nil {
				return err
			}
			a.logger.Info("purchases reset", "driver", a.cfg.Store.Driver)
			return nil
		},
	}

	cmd.AddCommand(list, reset)
	return cmd
}

func newCatalogCommand(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog FILE",
		Short: "Check a YAML product catalog and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"products":     cat.List(),
				"entitlements": cat.Entitlements(),
			})
		},
	}
}

func newServeWebhookCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-webhook",
		Short: "Receive validator notifications and keep the store in sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s, err := openStore(ctx, a.cfg.Store)
			if err != nil {
				return err
			}
			defer s.Close()

			opts := []webhook.Option{webhook.WithLogger(a.logger)}
			if a.cfg.Webhook.Password != "" {
				opts = append(opts, webhook.WithPassword(a.cfg.Webhook.Password))
			}
			if a.cfg.NATSURL != "" {
				nc, err := natsbridge.Connect(a.cfg.NATSURL, a.logger)
				if err != nil {
					return err
				}
				defer nc.Close()
				bridge := natsbridge.New(nc, natsbridge.WithLogger(a.logger))
				opts = append(opts, webhook.WithListener(func(ctx context.Context, _ webhook.Change, _ string, v *purchase.Verified) {
					if err := bridge.OnEvent(ctx, event.Purchase(event.PurchaseUpdated, v)); err != nil {
						a.logger.Warn("nats publish failed", "product_id", v.ProductID, "error", err)
					}
				}))
			}

			e := echo.New()
			e.HideBanner = true
			e.Use(middleware.Recover())
			e.GET("/health", func(c echo.Context) error {
				if err := s.Ping(c.Request().Context()); err != nil {
					return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
				}
				return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
			})
			webhook.New(s, opts...).Mount(e, a.cfg.Webhook.Path)

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("webhook listening", "addr", a.cfg.HTTP.Addr(), "path", a.cfg.Webhook.Path)
				if err := e.Start(a.cfg.HTTP.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return e.Shutdown(shutdownCtx)
		},
	}
}
