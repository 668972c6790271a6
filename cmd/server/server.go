package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Simplici0/pricecalc/internal/auth"
	"github.com/Simplici0/pricecalc/internal/config"
	"github.com/Simplici0/pricecalc/internal/exchange"
	"github.com/Simplici0/pricecalc/internal/log"
	"github.com/Simplici0/pricecalc/internal/metrics"
	"github.com/Simplici0/pricecalc/internal/store"
	"github.com/Simplici0/pricecalc/internal/validator"
)

type rateProvider interface {
	Rate(ctx context.Context, purchaseCurrency, sellingCurrency string) (exchange.Quote, error)
}

type serverDeps struct {
	store     *store.Store
	passwords auth.Authenticator
	google    *auth.GoogleProvider
	rates     rateProvider
}

type server struct {
	cfg       config.Config
	store     *store.Store
	passwords auth.Authenticator
	google    *auth.GoogleProvider
	states    *auth.StateStore
	tokens    *auth.TokenIssuer
	rates     rateProvider
	validator *validator.Validator
	limiter   *rate.Limiter
	metrics   *metrics.Middleware
}

func newServer(cfg config.Config, deps serverDeps) *server {
	v := validator.NewValidator()
	v.Register(validator.NewParameterSetValidationRules()...)

	return &server{
		cfg:       cfg,
		store:     deps.store,
		passwords: deps.passwords,
		google:    deps.google,
		states:    auth.NewStateStore(),
		tokens:    auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		rates:     deps.rates,
		validator: v,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Service.RateLimitRPS), cfg.Service.RateLimitBurst),
		metrics:   metrics.NewMiddleware("pricecalc"),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(
		chiMiddleware.RequestID,
		log.Logger(zap.L(), "http"),
		chiMiddleware.Recoverer,
		s.metrics.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Service.AllowedOrigins,
			AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		s.rateLimit,
	)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/google/login", s.handleGoogleLogin)
		r.Get("/auth/google/callback", s.handleGoogleCallback)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)

			r.Route("/parameter-sets", func(r chi.Router) {
				r.Get("/", s.handleListParameterSets)
				r.Get("/default", s.handleGetDefaultParameterSet)
				r.Get("/active", s.handleGetActiveParameterSet)
				r.Put("/active", s.handleSetActiveParameterSet)
				r.Get("/{id}", s.handleGetParameterSet)

				r.Group(func(r chi.Router) {
					r.Use(requireAdmin)
					r.Post("/", s.handleCreateParameterSet)
					r.Put("/{id}", s.handleUpdateParameterSet)
					r.Delete("/{id}", s.handleDeleteParameterSet)
					r.Post("/{id}/default", s.handleSetDefaultParameterSet)
					r.Post("/{id}/refresh-rate", s.handleRefreshExchangeRate)
				})
			})

			r.Get("/exchange-rates", s.handleExchangeRate)

			r.Route("/calculate", func(r chi.Router) {
				r.Post("/selling-price", s.handleCalculateSellingPrice)
				r.Post("/purchase-price", s.handleCalculatePurchasePrice)
				r.Post("/margin", s.handleCalculateMargin)
			})
		})
	})

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *server) Run(ctx context.Context, listener net.Listener) error {
	logger := zap.S().Named("api_server")
	srv := http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), s.cfg.Service.ShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		logger.Info("api server terminated")
	}()

	logger.Infof("listening on %s", listener.Addr())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, r, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		zap.S().Named("api_server").Errorw("health check failed", "error", err)
		writeError(w, r, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}
