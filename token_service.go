package auth

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/dvsa/dvsa-auth/middleware/jwtware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// DefaultKeyID is the kid header of every token we sign.
const DefaultKeyID = "dvsa-hs256"

var signingMethod = jwt.SigningMethodHS256

// TokenService encodes and decodes access tokens
type TokenService interface {
	Encode(userID, sessionID ID, issuer string, role UserRole, hours int) (AccessToken, error)
	EncodeUntil(userID, sessionID ID, role UserRole, expiresAt time.Time) (AccessToken, error)
	Decode(token string) (*JWTClaims, error)
	DecodeAllowExpired(token string) (*JWTClaims, error)
	Validate(token string) (jwtware.AuthClaims, error)
	Issuer() string
}

// MaxTokenHours caps Encode at ten years.
const MaxTokenHours = 10 * 366 * 24

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	issuer     string
	keys       *keyfunc.JWKS
	logger     Logger
	now        func() time.Time
}

var _ TokenService = (*TokenServiceImpl)(nil)
var _ jwtware.TokenValidator = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance. The secret is
// required, an empty one is a startup error.
func NewTokenService(signingKey []byte, issuer string, logger Logger) (*TokenServiceImpl, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSecret
	}
	if logger == nil {
		logger = defLogger()
	}

	keys := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		DefaultKeyID: keyfunc.NewGivenCustom(signingKey, keyfunc.GivenKeyOptions{
			Algorithm: signingMethod.Alg(),
		}),
	})

	return &TokenServiceImpl{
		signingKey: signingKey,
		issuer:     issuer,
		keys:       keys,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// WithClock replaces the time source, used by tests.
func (ts *TokenServiceImpl) WithClock(now func() time.Time) *TokenServiceImpl {
	if now != nil {
		ts.now = now
	}
	return ts
}

func (ts *TokenServiceImpl) Issuer() string {
	return ts.issuer
}

// Encode mints a token valid for the given number of hours from now.
func (ts *TokenServiceImpl) Encode(userID, sessionID ID, issuer string, role UserRole, hours int) (AccessToken, error) {
	if hours < 0 || hours > MaxTokenHours {
		return "", errors.New(fmt.Sprintf("token duration must be between 0 and %d hours", MaxTokenHours), errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithTextCode(TextCodeValidation).
			WithMetadata(map[string]any{"hours": hours})
	}
	if issuer == "" {
		issuer = ts.issuer
	}

	now := ts.now()
	return ts.sign(newClaims(userID, sessionID, issuer, role, now, now.Add(time.Duration(hours)*time.Hour)))
}

// EncodeUntil mints a token that expires exactly at expiresAt.
func (ts *TokenServiceImpl) EncodeUntil(userID, sessionID ID, role UserRole, expiresAt time.Time) (AccessToken, error) {
	return ts.sign(newClaims(userID, sessionID, ts.issuer, role, ts.now(), expiresAt))
}

func newClaims(userID, sessionID ID, issuer string, role UserRole, issuedAt, expiresAt time.Time) *JWTClaims {
	return &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SID:      sessionID.String(),
		UserRole: string(role),
	}
}

func (ts *TokenServiceImpl) sign(claims *JWTClaims) (AccessToken, error) {
	token := jwt.NewWithClaims(signingMethod, claims)
	token.Header["kid"] = DefaultKeyID

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return AccessToken(signedString), nil
}

// Decode verifies signature, algorithm and expiry.
func (ts *TokenServiceImpl) Decode(tokenString string) (*JWTClaims, error) {
	return ts.decode(tokenString, jwt.WithTimeFunc(ts.now))
}

// DecodeAllowExpired verifies signature and algorithm only. Logout uses
// it so a stale cookie can still end its session.
func (ts *TokenServiceImpl) DecodeAllowExpired(tokenString string) (*JWTClaims, error) {
	return ts.decode(tokenString, jwt.WithoutClaimsValidation())
}

// Validate satisfies jwtware.TokenValidator
func (ts *TokenServiceImpl) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := ts.Decode(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (ts *TokenServiceImpl) decode(tokenString string, opts ...jwt.ParserOption) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	parserOptions := append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
	}, opts...)

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, ts.keyFor, parserOptions...)
	if err != nil {
		return nil, ts.mapParseError(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService decode could not map claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// keyFor resolves the verification key. Tokens without a kid are
// checked against the signing key, the algorithm was already enforced.
func (ts *TokenServiceImpl) keyFor(token *jwt.Token) (any, error) {
	if kid, ok := token.Header["kid"]; !ok || kid == "" {
		return ts.signingKey, nil
	}
	return ts.keys.Keyfunc(token)
}

func (ts *TokenServiceImpl) mapParseError(err error) error {
	switch {
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return withSource(ErrTokenMalformed, err, nil)
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
		if stderrors.Is(err, jwt.ErrSignatureInvalid) {
			return withSource(ErrTokenSignature, err, nil)
		}
		// rejected by WithValidMethods
		return withSource(ErrTokenAlgorithm, err, nil)
	case stderrors.Is(err, jwt.ErrTokenUnverifiable):
		ts.logger.Debug("TokenService decode could not resolve key", "error", err)
		return withSource(ErrTokenAlgorithm, err, nil)
	default:
		return withSource(ErrTokenMalformed, err, nil)
	}
}
