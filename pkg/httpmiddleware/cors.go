package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists origins allowed to make cross-origin requests.
	// Empty, or containing "*", allows every origin.
	AllowOrigins []string

	// AllowMethods defaults to "GET, POST, PUT, DELETE, OPTIONS".
	AllowMethods []string

	// AllowHeaders lists request headers clients may send. When empty the
	// preflight's Access-Control-Request-Headers value is echoed back.
	AllowHeaders []string

	// AllowCredentials exposes responses to credentialed requests. Incompatible
	// with the wildcard origin, so setting it forces origin echo-back.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds. Zero omits the header.
	MaxAge int
}

// CORS handles Cross-Origin Resource Sharing, including preflight requests.
// Origin matching is case-insensitive; the configured casing is echoed back.
func CORS(cfg CORSConfig) Middleware {
	allowAll := len(cfg.AllowOrigins) == 0
	allowed := make(map[string]string, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
			break
		}
		allowed[strings.ToLower(o)] = o
	}
	if cfg.AllowCredentials {
		// The wildcard origin is forbidden with credentials.
		allowAll = false
	}

	allowMethods := strings.Join(cfg.AllowMethods, ", ")
	if allowMethods == "" {
		allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	allowHeaders := strings.Join(cfg.AllowHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowOrigin := ""
			switch {
			case allowAll:
				allowOrigin = "*"
			default:
				allowOrigin = allowed[strings.ToLower(origin)]
			}

			if !allowAll {
				w.Header().Add("Vary", "Origin")
			}

			// Preflight request.
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.Header().Add("Vary", "Access-Control-Request-Method")
				w.Header().Add("Vary", "Access-Control-Request-Headers")

				if allowOrigin != "" {
					w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
					w.Header().Set("Access-Control-Allow-Methods", allowMethods)
					if allowHeaders != "" {
						w.Header().Set("Access-Control-Allow-Headers", allowHeaders)
					} else if rh := r.Header.Get("Access-Control-Request-Headers"); rh != "" {
						w.Header().Set("Access-Control-Allow-Headers", rh)
					}
					if cfg.AllowCredentials {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
					}
					if cfg.MaxAge > 0 {
						w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
