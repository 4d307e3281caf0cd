package middlewarectx

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/designhub/internal/config"
	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
	"github.com/magabrotheeeer/designhub/internal/models"
)

// Action — решение route guard.
type Action string

// Возможные решения route guard.
const (
	ActionPass     Action = "pass"
	ActionRedirect Action = "redirect"
	ActionRewrite  Action = "rewrite"
)

// Decision — результат проверки запроса route guard.
// Для ActionRedirect Location содержит адрес редиректа, для ActionRewrite новый путь с query.
type Decision struct {
	Action   Action
	Location string
	Rule     string
}

// Пути, которые guard пропускает без проверок.
var guardAllowList = []string{
	"/api/auth/",
	"/static/",
	"/favicon.ico",
	"/metrics",
	"/docs/",
	"/api/subscription/check",
}

const (
	legacySubscribePath = "/subscribe"
	testSubscribePath   = "/subscribe/test"
)

// Guard решает, пропустить запрос, перенаправить его или переписать путь.
// Решение принимается только по claims токена, хранилище не читается.
type Guard struct {
	cfg     config.Guard
	metrics *Metrics
}

// NewGuard создаёт Guard. metrics может быть nil.
func NewGuard(cfg config.Guard, metrics *Metrics) *Guard {
	return &Guard{cfg: cfg, metrics: metrics}
}

// Decide применяет правила по порядку, срабатывает первое подходящее.
// claims равен nil для неаутентифицированного запроса.
func (g *Guard) Decide(path, rawQuery string, claims *jwt.Claims) Decision {
	for _, p := range guardAllowList {
		if strings.HasPrefix(path, p) {
			return Decision{Action: ActionPass, Rule: "allow_list"}
		}
	}

	if isLegacySubscribe(path) {
		target := g.cfg.CheckoutPath
		if plan := planParam(rawQuery); plan != "" {
			target += "?" + url.Values{"plan": {plan}}.Encode()
		}
		return Decision{Action: ActionRewrite, Location: target, Rule: "legacy_subscribe"}
	}

	authenticated := claims != nil && claims.UserID() != ""

	if authenticated && (strings.HasPrefix(path, g.cfg.SignInPath) || strings.HasPrefix(path, g.cfg.SignUpPath)) {
		return Decision{Action: ActionRedirect, Location: g.cfg.DashboardPath, Rule: "signed_in"}
	}

	if !authenticated && (strings.HasPrefix(path, g.cfg.DashboardPath) || path == testSubscribePath) {
		original := path
		if rawQuery != "" {
			original += "?" + rawQuery
		}
		return Decision{
			Action:   ActionRedirect,
			Location: g.cfg.SignInPath + "?callbackUrl=" + url.QueryEscape(original),
			Rule:     "signin_required",
		}
	}

	if authenticated && g.isGated(path) {
		if claims.SubscriptionStatus == models.StatusActive {
			return Decision{Action: ActionPass, Rule: "subscription_active"}
		}
		return Decision{Action: ActionRedirect, Location: g.cfg.BillingPath, Rule: "subscription_required"}
	}

	return Decision{Action: ActionPass, Rule: "default"}
}

// Middleware применяет решения Guard к запросам. Должен стоять после SessionMiddleware.
func (g *Guard) Middleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Guard"
			d := g.Decide(r.URL.Path, r.URL.RawQuery, ClaimsFrom(r.Context()))
			g.metrics.observeGuard(d)

			switch d.Action {
			case ActionRedirect:
				log.Debug("route guard redirect",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("path", r.URL.Path),
					slog.String("location", d.Location),
					slog.String("rule", d.Rule),
				)
				http.Redirect(w, r, d.Location, http.StatusTemporaryRedirect)
				return
			case ActionRewrite:
				rewritten, err := url.ParseRequestURI(d.Location)
				if err != nil {
					next.ServeHTTP(w, r)
					return
				}
				r2 := r.Clone(r.Context())
				r2.URL.Path = rewritten.Path
				r2.URL.RawPath = ""
				r2.URL.RawQuery = rewritten.RawQuery
				r2.RequestURI = d.Location
				next.ServeHTTP(w, r2)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) isGated(path string) bool {
	for _, p := range g.cfg.SubscriptionGated {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func isLegacySubscribe(path string) bool {
	if path == testSubscribePath || strings.HasPrefix(path, testSubscribePath+"/") {
		return false
	}
	return path == legacySubscribePath || strings.HasPrefix(path, legacySubscribePath+"/")
}

func planParam(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	return values.Get("plan")
}
