package http

import (
	"net/http"
	"strings"
	"time"

	"onboarding/internal/observability/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	CORSOrigins []string
	// RateLimit caps form submissions per client IP per minute. Zero disables it.
	RateLimit      int
	RequestTimeout time.Duration
}

func NewRouter(cfg RouterConfig, h *Handler) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.WithRequestAndTrace)
	r.Use(middleware.WithMetrics)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   originsIfSet(cfg.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-Id", "X-Trace-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.page(h.Flow.Root))
	r.Get("/dashboard", h.page(h.Flow.Dashboard))

	r.Route("/auth", func(r chi.Router) {
		r.Use(noCache)

		r.Get("/login", h.page(h.Flow.LoginPage))
		r.Get("/register", h.page(h.Flow.RegisterPage))
		r.Get("/verify-otp", h.page(h.Flow.VerifyOTPPage))
		r.Get("/complete-profile", h.page(h.Flow.CompleteProfilePage))
		r.Get("/reset-password", h.page(h.Flow.ResetPasswordPage))
		r.Get("/reset-password/verify-otp", h.page(h.Flow.ResetVerifyOTPPage))
		r.Get("/reset-password/new-password", h.page(h.Flow.ResetNewPasswordPage))
		r.Get("/logout", h.logout)

		r.Group(func(r chi.Router) {
			if cfg.RateLimit > 0 {
				r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
			}
			r.Post("/login", submit(h, h.Flow.Login))
			r.Post("/register", submit(h, h.Flow.Register))
			r.Post("/verify-otp", submit(h, h.Flow.VerifyOTP))
			r.Post("/resend-otp", h.resend(h.Flow.ResendOTP))
			r.Post("/complete-profile", submit(h, h.Flow.CompleteProfile))
			r.Post("/reset-password", submit(h, h.Flow.ResetPassword))
			r.Post("/reset-password/verify-otp", submit(h, h.Flow.ResetVerifyOTP))
			r.Post("/reset-password/resend-otp", h.resend(h.Flow.ResetResendOTP))
			r.Post("/reset-password/new-password", submit(h, h.Flow.ResetNewPassword))
			r.Post("/logout", h.logout)
		})
	})

	return r
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, private")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

func originsIfSet(in []string) []string {
	out := []string{}
	for _, o := range in {
		if s := strings.TrimSpace(o); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
