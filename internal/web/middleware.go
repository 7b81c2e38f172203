package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"experimenter/internal/experiments"
	"experimenter/internal/logging"
	"experimenter/internal/services"
)

const userKey = "experimenter.user"

// requestID tags every request with an id, echoed in X-Request-Id and
// carried on the request context for log correlation.
func (s *Server) requestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(services.WithRequestID(req.Context(), id)))
		},
	})
}

func (s *Server) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		req := c.Request()
		status := c.Response().Status
		attrs := []logging.Attr{
			logging.String("method", req.Method),
			logging.String("path", req.URL.Path),
			logging.Int("status", status),
			logging.Duration("elapsed", time.Since(start)),
		}
		logger := logging.WithContext(req.Context(), s.logger)
		if status >= http.StatusInternalServerError {
			logger.Warn("http request", logging.Args(attrs...)...)
		} else {
			logger.Debug("http request", logging.Args(attrs...)...)
		}
		return err
	}
}

// instrument records request counts and latency by route template. Errors
// are rendered here so the recorded status is the one the client sees.
func (s *Server) instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		s.metrics.ObserveHTTP(c.Path(), c.Request().Method, c.Response().Status, time.Since(start))
		return nil
	}
}

// authenticate resolves the acting user for route name. Whitelisted routes
// pass through anonymously for reads only; writes always need an identity.
func (s *Server) authenticate(name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if s.whitelist[name] && readOnlyMethod(req.Method) {
				return next(c)
			}
			email, err := s.identify(req)
			if err != nil {
				return err
			}
			user, err := s.dir.GetOrCreateUser(req.Context(), email)
			if err != nil {
				return err
			}
			c.Set(userKey, user)
			c.SetRequest(req.WithContext(services.WithUser(req.Context(), user.Email)))
			return next(c)
		}
	}
}

func readOnlyMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// identify returns the caller's email from the proxy header or, when a
// signing secret is configured, from a bearer token.
func (s *Server) identify(req *http.Request) (string, error) {
	if email := strings.TrimSpace(req.Header.Get(s.cfg.Server.AuthHeader)); email != "" {
		return email, nil
	}
	auth := req.Header.Get(echo.HeaderAuthorization)
	if len(s.jwtSecret) > 0 && strings.HasPrefix(auth, "Bearer ") {
		return s.emailFromToken(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
	}
	return "", services.Wrap(services.ErrUnauthorized, "web", "authenticate", "missing identity", nil)
}

func (s *Server) emailFromToken(raw string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", services.Wrap(services.ErrUnauthorized, "web", "authenticate", "invalid bearer token", err)
	}
	email, _ := claims["email"].(string)
	if email = strings.TrimSpace(email); email == "" {
		return "", services.Wrap(services.ErrUnauthorized, "web", "authenticate", "token has no email claim", nil)
	}
	return email, nil
}

// currentUser returns the user resolved by authenticate. Whitelisted routes
// have none.
func currentUser(c echo.Context) (experiments.User, bool) {
	user, ok := c.Get(userKey).(experiments.User)
	return user, ok
}

// handleError renders err as {"error": reason} with the classified status.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := services.HTTPStatus(err)
	reason := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		reason = fmt.Sprint(he.Message)
	}
	if code >= http.StatusInternalServerError {
		logging.WithContext(c.Request().Context(), s.logger).Error("request failed", logging.Error(err))
		if he == nil {
			reason = http.StatusText(code)
		}
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, map[string]string{"error": reason})
	}
	if err != nil {
		s.logger.Warn("write error response failed", logging.Error(err))
	}
}
