package main

import (
	"errors"
	"net/http"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal"
	"github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/MrEthical07/goGuard/user"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const logKey = "log"

type server struct {
	engine     *goGuard.Engine
	trustProxy bool
	maxAge     time.Duration
}

func newServer(engine *goGuard.Engine, trustProxy bool) *server {
	return &server{
		engine:     engine,
		trustProxy: trustProxy,
		maxAge:     engine.Config().Server.CookieMaxAge,
	}
}

func (s *server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(prometheus.New(s.engine).Handler()))

	guarded := r.Group("/")
	guarded.Use(s.gate())
	{
		guarded.GET("/robots.txt", s.robots)
		guarded.GET("/pow", s.issuePoW)
		guarded.GET("/login", s.login)
		guarded.POST("/login", s.login)
		guarded.GET("/session", s.sessions)
		guarded.POST("/logout", s.logout)
	}
	return r
}

func (s *server) request(c *gin.Context) *goGuard.Request {
	if req, ok := goGuard.RequestFromContext(c.Request.Context()); ok {
		return req
	}
	return middleware.NewRequest(c.Request, s.trustProxy)
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		entry := s.engine.Logger().WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"ip_hash": internal.HashBindingValue(middleware.ClientIP(c.Request, s.trustProxy)),
		})
		c.Set(logKey, entry)

		c.Next()

		entry.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

func (s *server) gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := middleware.NewRequest(c.Request, s.trustProxy)
		res := s.engine.CheckRequest(c.Request.Context(), req)
		middleware.WriteCookies(c.Writer, c.Request, res.Cookies, s.maxAge)

		switch res.Decision {
		case goGuard.GatePass:
			c.Request = c.Request.WithContext(goGuard.WithGateResult(goGuard.WithRequest(c.Request.Context(), req), res))
			c.Next()
		case goGuard.GateChallenge:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "challenge_required", "pow": res.Challenge})
		case goGuard.GateRateLimited:
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		case goGuard.GateBlocked:
			c.MustGet(logKey).(*logrus.Entry).WithField("source", res.Source).Warn("blocked by reputation")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "blocked"})
		default:
			body := gin.H{"error": "access_denied"}
			if res.Error != nil {
				body["message"] = res.Error.Message
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, body)
		}
	}
}

func (s *server) health(c *gin.Context) {
	h := s.engine.Health(c.Request.Context())
	status := http.StatusOK
	if !h.RedisAvailable {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"redis": h.RedisAvailable, "redis_latency": h.RedisLatency.String()})
}

func (s *server) robots(c *gin.Context) {
	c.String(http.StatusOK, "User-agent: *\nDisallow: /\n")
}

func (s *server) issuePoW(c *gin.Context) {
	ch, err := s.engine.IssuePoW(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, ch)
}

func formError(e *user.FormError) gin.H {
	if e == nil {
		return nil
	}
	return gin.H{"message": e.Message, "fields": e.Fields}
}

func (s *server) login(c *gin.Context) {
	res := s.engine.Login(c.Request.Context(), s.request(c))
	if res.Err != nil {
		c.MustGet(logKey).(*logrus.Entry).WithError(res.Err).Error("login")
	}
	middleware.WriteCookies(c.Writer, c.Request, res.Cookies, s.maxAge)

	body := gin.H{"step": res.Step.String(), "user_name": res.UserName}
	if e := formError(res.Error); e != nil {
		body["error"] = e
	}
	switch res.Step {
	case goGuard.StepLogin:
		body["pow"] = res.PoW
	case goGuard.StepCaptcha:
		images := make([]string, 0, len(res.Captcha.Images))
		for _, img := range res.Captcha.Images {
			images = append(images, img.DataURI())
		}
		body["state"] = res.Captcha.Token
		body["images"] = images
	case goGuard.StepTwoFactor:
		body["state"] = res.State
	}
	c.JSON(http.StatusOK, body)
}

func (s *server) sessions(c *gin.Context) {
	list, err := s.engine.ListSessions(c.Request.Context(), s.request(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func (s *server) logout(c *gin.Context) {
	err := s.engine.Logout(c.Request.Context(), s.request(c))
	switch {
	case errors.Is(err, goGuard.ErrSessionInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable"})
	default:
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(goGuard.CookieSession, "", -1, "/", "", c.Request.TLS != nil, true)
		c.Status(http.StatusNoContent)
	}
}
