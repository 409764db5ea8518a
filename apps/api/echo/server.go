package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/tarpaulin/backend/core"
	"github.com/tarpaulin/backend/core/assignment"
	"github.com/tarpaulin/backend/core/authz"
	"github.com/tarpaulin/backend/core/course"
	"github.com/tarpaulin/backend/core/user"
)

type (
	Options struct {
		Addr           string
		DisableReqLogs bool

		UserSvc       user.Service
		CourseSvc     course.Service
		AssignmentSvc assignment.Service
		Engine        *authz.Engine
		Logger        core.Logger
		Conf          *core.Config
		Validate      *validator.Validate
		Translator    ut.Translator
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts    *Options
		app     *echo.Echo
		limiter *rateLimiter
		quit    chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:    opts,
		app:     echo.New(),
		limiter: newRateLimiter(opts.Conf.Server.RateLimitMaxRequests, opts.Conf.Server.RateLimitWindow),
		quit:    make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(s.limiter.middleware())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	jwt := middleware.JWTWithConfig(appJWTConfig(conf))
	g := s.app.Group("")

	registerUserAPI(g, jwt, s.opts)
	registerCourseAPI(g, jwt, s.opts)
	registerAssignmentAPI(g, jwt, s.opts)
	registerMediaAPI(g, jwt, s.opts)
}

func (s *server) Start() {
	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.app.Start(s.opts.Addr); err != nil && err != http.ErrServerClosed {
			s.app.Logger.Fatal(err)
		}
	}()

	<-s.quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		s.app.Logger.Fatal(err)
	}
}

func (s *server) Stop(ctx context.Context) error {
	s.limiter.stop()
	return s.app.Shutdown(ctx)
}

// signalShutdown triggers a graceful shutdown when the app can no longer
// guarantee its integrity.
func (s *server) signalShutdown() {
	select {
	case s.quit <- syscall.SIGTERM:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Tarpaulin API!")
}
