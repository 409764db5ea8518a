package echoapi

import (
	"context"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/tarpaulin/backend/core"
	"github.com/tarpaulin/backend/core/authz"
	"github.com/tarpaulin/backend/core/user"
)

const jwtContextKey = "userToken"

// appJWTConfig is the JWT auth middleware config.
func appJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    conf.SecretKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Role  string `json:"role,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func GetUserClaims(conf *core.Config, usr user.User) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Role:  usr.Role,
		Name:  usr.Name,
		Email: usr.Email,
	}
}

func authenticate(ctx context.Context, email, pwd string, svc user.Service, conf *core.Config) (*Claims, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if usr, err = svc.SetLastLogin(ctx, usr); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetUserClaims(conf, usr), nil
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(conf.SecretKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextCredential turns the request's verified claims into the typed
// credential the authorization engine works with.
func getContextCredential(ctx echo.Context) (authz.Credential, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return authz.Credential{}, err
	}
	return credentialFromClaims(claims), nil
}

func credentialFromClaims(claims Claims) authz.Credential {
	return authz.Credential{
		ID:    claims.Subject,
		Role:  claims.Role,
		Name:  claims.Name,
		Email: claims.Email,
	}
}

// optionalCredential decodes the bearer token when one is present; routes
// that are open to anonymous callers but behave differently for known ones
// (user registration) use it instead of the JWT middleware.
func optionalCredential(ctx echo.Context, conf *core.Config) (authz.Credential, bool) {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return authz.Credential{}, false
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(
		strings.TrimPrefix(header, "Bearer "),
		claims,
		func(t *jwt.Token) (interface{}, error) { return conf.SecretKey, nil },
	)
	if err != nil || !token.Valid {
		return authz.Credential{}, false
	}
	return credentialFromClaims(*claims), true
}
