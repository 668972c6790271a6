package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Simplici0/pricecalc/internal/auth"
	"github.com/Simplici0/pricecalc/internal/config"
	"github.com/Simplici0/pricecalc/internal/db"
	"github.com/Simplici0/pricecalc/internal/exchange"
	"github.com/Simplici0/pricecalc/internal/log"
	"github.com/Simplici0/pricecalc/internal/migrations"
	"github.com/Simplici0/pricecalc/internal/seed"
	"github.com/Simplici0/pricecalc/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pricing API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		logger := log.InitLog(cfg.Service.LogLevel)
		defer func() { _ = logger.Sync() }()
		runLog := zap.S().Named("run")
		runLog.Info("Starting API service")
		cfg.LogNotices(zap.S().Named("config"))
		defer runLog.Info("API service stopped")

		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}
		st := store.New(database)
		defer st.Close()

		if err := migrations.Up(database); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		stats, err := seed.Run(cmd.Context(), database, seed.Config{
			AdminUsername: cfg.Auth.AdminUsername,
			AdminPassword: cfg.Auth.AdminPassword,
		})
		if err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
		runLog.Infow("seed completed", "inserts", stats.Inserts)

		srv := newServer(cfg, serverDeps{
			store:     st,
			passwords: passwordChain(cfg, st),
			google:    googleProvider(cfg),
			rates: exchange.NewProvider(exchange.Config{
				APIURL:   cfg.Exchange.APIURL,
				CacheTTL: cfg.Exchange.CacheTTL,
				Timeout:  cfg.Exchange.Timeout,
			}),
		})
		if err := srv.metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("registering http metrics: %w", err)
		}

		listener, err := net.Listen("tcp", ":"+cfg.Service.Port)
		if err != nil {
			return fmt.Errorf("creating listener: %w", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		return srv.Run(ctx, listener)
	},
}

func passwordChain(cfg config.Config, st *store.Store) auth.Authenticator {
	providers := []auth.Authenticator{auth.NewLocalAuthenticator(st.Users())}
	if cfg.Auth.LDAPEnabled() {
		providers = append(providers, auth.NewLDAPAuthenticator(auth.LDAPConfig{
			URL:                cfg.Auth.LDAP.URL,
			BindTemplate:       cfg.Auth.LDAP.BindTemplate,
			BaseDN:             cfg.Auth.LDAP.BaseDN,
			UserFilter:         cfg.Auth.LDAP.UserFilter,
			AdminGroupDN:       cfg.Auth.LDAP.AdminGroupDN,
			StartTLS:           cfg.Auth.LDAP.StartTLS,
			InsecureSkipVerify: cfg.Auth.LDAP.InsecureSkipVerify,
		}))
	}
	return auth.NewChain(providers...)
}

func googleProvider(cfg config.Config) *auth.GoogleProvider {
	if !cfg.Auth.GoogleEnabled() {
		return nil
	}
	return auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.Auth.Google.ClientID,
		ClientSecret: cfg.Auth.Google.ClientSecret,
		RedirectURL:  cfg.Auth.Google.RedirectURL,
		HostedDomain: cfg.Auth.Google.HostedDomain,
	})
}
