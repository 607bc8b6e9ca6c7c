package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kasemt/hrcore/internal/auth"
	"github.com/kasemt/hrcore/internal/services"
	pkglogger "github.com/kasemt/hrcore/pkg/logger"
)

// Paths exempt from the expiry gate. The change-password endpoints must
// stay reachable or an expired account could never rotate out of the
// redirect loop.
var expiryExemptPrefixes = []string{
	"/auth/change-password",
	"/auth/force-change-password",
	"/auth/password-requirements",
	"/auth/logout",
	"/api/",
	"/static/",
	"/assets/",
}

// PasswordExpiry gates authenticated requests on password age. Expired
// accounts get a 403 pointing at the change-password flow; accounts
// within seven days of expiry get a warning header instead.
func PasswordExpiry(expiry *services.PasswordExpiryService, audit *pkglogger.AuditLogger, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range expiryExemptPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			claims := auth.GetUserFromContext(r)
			if claims == nil {
				next.ServeHTTP(w, r)
				return
			}

			status, err := expiry.Check(r.Context(), claims.UserID)
			if err != nil {
				// Advisory gate: an unreadable expiry state must not take
				// the whole API down.
				logger.Error("password expiry check failed",
					slog.String("user_id", claims.UserID),
					slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}

			if status.Expired {
				audit.LogAccountAction("Password_Expired_Warning", claims.UserID, r.RemoteAddr, map[string]string{
					"days_old": strconv.Itoa(status.DaysOld),
					"max_days": strconv.Itoa(status.MaxDays),
				})

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success":     false,
					"message":     "Your password has expired and must be changed",
					"redirect_to": "/auth/force-change-password",
					"days_old":    status.DaysOld,
					"max_days":    status.MaxDays,
				})
				return
			}

			if status.DaysRemaining > 0 && status.DaysRemaining <= 7 {
				w.Header().Set("X-Password-Expires-In-Days", strconv.Itoa(status.DaysRemaining))
			}

			next.ServeHTTP(w, r)
		})
	}
}
