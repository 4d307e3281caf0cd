package middlewarectx

import (
	"io"
	"log/slog"

	"github.com/magabrotheeeer/designhub/internal/config"
	"github.com/magabrotheeeer/designhub/internal/lib/jwt"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func testGuardConfig() config.Guard {
	return config.Guard{
		SignInPath:        "/signin",
		SignUpPath:        "/signup",
		DashboardPath:     "/dashboard",
		BillingPath:       "/dashboard/billing",
		CheckoutPath:      "/checkout",
		SubscriptionGated: []string{"/dashboard/requests/new"},
	}
}

func claimsWith(userID, role, status string) *jwt.Claims {
	c := &jwt.Claims{Role: role, SubscriptionStatus: status}
	c.Subject = userID
	return c
}
