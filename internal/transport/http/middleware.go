package http

import (
	"context"
	"net/http"

	"github.com/your-org/authgate/internal/config"
	"github.com/your-org/authgate/internal/domain"
	"github.com/your-org/authgate/internal/service/metrics"
	"github.com/your-org/authgate/internal/service/routes"
	"github.com/your-org/authgate/internal/service/token"
	autherrors "github.com/your-org/authgate/pkg/errors"
	"github.com/your-org/authgate/pkg/httputil"
	"github.com/your-org/authgate/pkg/logger"
	"github.com/your-org/authgate/pkg/tracing"
)

// 401 detail texts. Stable strings, decoupled from internal error messages.
const (
	detailMissingHeader = "Missing authorization header"
	detailInvalidScheme = "Invalid authorization header. Use 'Bearer <token>'"
	detailMissingToken  = "Missing token"
	detailTokenExpired  = "Token has expired"
	detailInvalidToken  = "Invalid token"
	detailDecodeFailed  = "Token could not be decoded"
	detailAuthFailed    = "Authentication failed"
)

type identityCtxKey struct{}

// IdentityFromContext returns the authenticated identity attached by the
// gateway, or nil for public and bypassed requests.
func IdentityFromContext(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(identityCtxKey{}).(*domain.Identity)
	return id
}

func withIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// TokenValidator is the part of the token service the gateway needs.
type TokenValidator interface {
	ValidateWithRetry(ctx context.Context, tokenString string) (domain.Claims, error)
}

// Gateway is the authentication middleware. It classifies every request
// against the route table, forwards public requests untouched, and requires
// a validated bearer token for everything else. All failures surface as 401,
// never as a server error.
type Gateway struct {
	table     *routes.Table
	validator TokenValidator
	cfg       *config.Config
}

// NewGateway creates the authentication gateway middleware.
func NewGateway(table *routes.Table, validator TokenValidator, cfg *config.Config) *Gateway {
	return &Gateway{
		table:     table,
		validator: validator,
		cfg:       cfg,
	}
}

// Handler wraps next with authentication enforcement.
func (g *Gateway) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		classification := g.table.Classify(r.URL.Path)

		if classification == routes.Public {
			// Public requests are forwarded unconditionally. Whatever sits
			// in the Authorization header is not even looked at.
			metrics.Default.RequestsTotal.WithLabelValues(string(classification), "forwarded").Inc()
			next.ServeHTTP(w, r)
			return
		}

		if config.BypassRequested() && g.cfg.BypassAllowed() {
			logger.WithContext(r.Context()).Warn("auth bypass active, forwarding without validation",
				logger.String("path", r.URL.Path))
			metrics.Default.BypassedTotal.Inc()
			metrics.Default.RequestsTotal.WithLabelValues(string(classification), "bypassed").Inc()
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		tokenString, err := token.ExtractBearer(header)
		if err != nil {
			g.rejectCredential(w, r, header, err)
			return
		}

		claims, err := g.validator.ValidateWithRetry(r.Context(), tokenString)
		if err != nil {
			g.rejectToken(w, r, tokenString, err)
			return
		}

		identity := domain.NewIdentity(claims)
		metrics.Default.RequestsTotal.WithLabelValues(string(classification), "authenticated").Inc()
		tracing.SetSpanAttributes(tracing.SpanFromContext(r.Context()), tracing.NewSpanAttributes().
			Add(tracing.AttrRouteClass, string(classification)).
			Add(tracing.AttrAuthOutcome, "authenticated").
			Add(tracing.AttrJWTSubject, identity.Subject).
			Add(tracing.AttrJWTIssuer, identity.Issuer))

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// rejectCredential handles requests whose Authorization header never made it
// to the validator.
func (g *Gateway) rejectCredential(w http.ResponseWriter, r *http.Request, header string, err error) {
	var detail string
	switch {
	case autherrors.Is(err, autherrors.ErrSchemeInvalid):
		detail = detailInvalidScheme
	case header == "":
		detail = detailMissingHeader
	default:
		detail = detailMissingToken
	}

	// A JWT-shaped header without the Bearer prefix is the most common
	// client mistake. Flag it without echoing the credential.
	logger.WithContext(r.Context()).Warn("request rejected before validation",
		logger.String("path", r.URL.Path),
		logger.String("detail", detail),
		logger.Bool("bare_jwt", logger.LooksLikeJWT(header)))
	metrics.Default.RejectedTotal.WithLabelValues("MISSING_CREDENTIAL").Inc()
	metrics.Default.RequestsTotal.WithLabelValues(string(routes.Protected), "rejected").Inc()

	httputil.WriteUnauthorized(w, detail)
}

// rejectToken maps a validator error onto the single 401 response shape.
func (g *Gateway) rejectToken(w http.ResponseWriter, r *http.Request, tokenString string, err error) {
	kind := autherrors.KindOf(err)

	var detail string
	switch kind {
	case autherrors.KindExpiredToken:
		detail = detailTokenExpired
	case autherrors.KindInvalidToken:
		detail = detailInvalidToken
	case autherrors.KindDecode:
		detail = detailDecodeFailed
	default:
		// Configuration and validation-infrastructure failures. The client
		// sees the same generic 401 either way.
		detail = detailAuthFailed
	}

	logger.WithContext(r.Context()).Warn("token rejected",
		logger.String("path", r.URL.Path),
		logger.String("kind", string(kind)),
		logger.Token("token", tokenString))
	span := tracing.SpanFromContext(r.Context())
	tracing.RecordError(span, err)
	tracing.SetSpanAttributes(span, tracing.NewSpanAttributes().
		Add(tracing.AttrAuthOutcome, "rejected").
		Add(tracing.AttrAuthKind, string(kind)))
	metrics.Default.RejectedTotal.WithLabelValues(string(kind)).Inc()
	metrics.Default.RequestsTotal.WithLabelValues(string(routes.Protected), "rejected").Inc()

	httputil.WriteUnauthorized(w, detail)
}
