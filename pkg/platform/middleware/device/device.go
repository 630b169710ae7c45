// Package device captures client device information for search-session audit
// records. The parsed user agent travels through context; sessions store a
// compact "browser/os" label, never the raw header.
package device

import (
	"context"
	"net/http"

	"github.com/mssola/useragent"
)

type contextKeyDeviceLabel struct{}

// Capture parses the User-Agent header and injects a device label into the
// request context.
func Capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := useragent.New(r.UserAgent())
		label := "unknown"
		if name, version := ua.Browser(); name != "" {
			label = name + "/" + version
			if os := ua.OS(); os != "" {
				label += " (" + os + ")"
			}
		}
		next.ServeHTTP(w, r.WithContext(WithDeviceLabel(r.Context(), label)))
	})
}

// GetDeviceLabel retrieves the device label from the context.
func GetDeviceLabel(ctx context.Context) string {
	if label, ok := ctx.Value(contextKeyDeviceLabel{}).(string); ok {
		return label
	}
	return ""
}

// WithDeviceLabel injects a device label into a context. Useful for service
// unit tests that don't run the full HTTP middleware chain.
func WithDeviceLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceLabel{}, label)
}
