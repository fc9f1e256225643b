package security

import (
	"context"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/ReneKroon/ttlcache/v2"
	"github.com/golang-jwt/jwt/v5"

	qerrors "github.com/qollective/qollective-go/errors"
)

// SignatureVerifier performs opt-in JWKS-backed signature verification,
// strictly separate from the parse-only claim extraction in package
// tenant. The resolved keyset is cached with a TTL so a verifier backed
// by a slow JWKS endpoint isn't refetched per request.
type SignatureVerifier struct {
	jwksURL    string
	algorithms []string
	cache      *ttlcache.Cache
}

const jwksCacheKey = "jwks"

// NewSignatureVerifier builds a verifier against jwksURL. The resolved
// keyfunc.Keyfunc is cached for ttl before being refreshed.
func NewSignatureVerifier(jwksURL string, algorithms []string, ttl time.Duration) *SignatureVerifier {
	cache := ttlcache.NewCache()
	cache.SetTTL(ttl)
	return &SignatureVerifier{jwksURL: jwksURL, algorithms: algorithms, cache: cache}
}

func (v *SignatureVerifier) keyfunc(ctx context.Context) (keyfunc.Keyfunc, error) {
	if cached, err := v.cache.Get(jwksCacheKey); err == nil {
		if kf, ok := cached.(keyfunc.Keyfunc); ok {
			return kf, nil
		}
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{v.jwksURL})
	if err != nil {
		return nil, qerrors.Wrap(qerrors.KindSecurity, err, "failed to initialize JWKS from %q", v.jwksURL)
	}
	_ = v.cache.Set(jwksCacheKey, kf)
	return kf, nil
}

// VerifiedClaims is the result of a successful signature verification,
// carrying the subject and the full claim set for downstream tenant
// extraction to consult if it wants the now-trusted values.
type VerifiedClaims struct {
	Subject string
	Claims  jwt.MapClaims
}

// Verify checks tokenString's signature against the configured JWKS and
// returns its claims. Verification failure (bad signature, expired,
// wrong algorithm, missing sub) always yields a KindSecurity error — the
// caller should fail closed, including when the JWKS endpoint itself is
// unavailable.
func (v *SignatureVerifier) Verify(ctx context.Context, tokenString string) (VerifiedClaims, error) {
	kf, err := v.keyfunc(ctx)
	if err != nil {
		return VerifiedClaims{}, err
	}

	parserOpts := []jwt.ParserOption{}
	if len(v.algorithms) > 0 {
		parserOpts = append(parserOpts, jwt.WithValidMethods(v.algorithms))
	}

	token, err := jwt.Parse(tokenString, kf.KeyfuncCtx(ctx), parserOpts...)
	if err != nil || !token.Valid {
		return VerifiedClaims{}, qerrors.Wrap(qerrors.KindSecurity, err, "JWT signature verification failed")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return VerifiedClaims{}, qerrors.New(qerrors.KindSecurity, "verified token carries no usable claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return VerifiedClaims{}, qerrors.New(qerrors.KindSecurity, "verified token missing sub claim")
	}

	return VerifiedClaims{Subject: sub, Claims: claims}, nil
}

// Close releases the verifier's keyset cache.
func (v *SignatureVerifier) Close() {
	v.cache.Close()
}

// Refresh forces the cached JWKS keyset to be refetched, bypassing the TTL.
// Called periodically by a MaintenanceScheduler so a rotated signing key
// becomes usable before the cache would otherwise have expired.
func (v *SignatureVerifier) Refresh(ctx context.Context) error {
	v.cache.Remove(jwksCacheKey)
	_, err := v.keyfunc(ctx)
	return err
}
