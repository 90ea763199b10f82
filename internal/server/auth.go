package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/mediagrab/internal/core/cookies"
)

// BrowserRequest is the request body for POST /api/auth/browser
type BrowserRequest struct {
	Browser string `json:"browser"`
}

func (s *Server) handleSetBrowser(c *gin.Context) {
	var req BrowserRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Browser == "" {
		badRequest(c, "browser name is required")
		return
	}

	if !s.svc.SetBrowser(req.Browser) {
		badRequest(c, "invalid browser. Supported: "+strings.Join(s.svc.AllowedBrowsers(), ", "))
		return
	}

	st := s.svc.AuthStatus()
	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    st,
		Message: "browser set to " + st.Detail + ", age-restricted videos should now work",
	})
}

func (s *Server) handleSetAuthMode(c *gin.Context) {
	var mode cookies.Mode
	if err := c.ShouldBindJSON(&mode); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if !s.svc.SetAuthMode(mode) {
		msg := "invalid auth mode"
		switch mode.Kind {
		case cookies.KindBrowser:
			msg = "invalid browser. Supported: " + strings.Join(s.svc.AllowedBrowsers(), ", ")
		case cookies.KindCookieFile:
			msg = "cookie file not found: " + mode.CookieFile
		}
		badRequest(c, msg)
		return
	}

	c.JSON(http.StatusOK, Response{
		Code:    200,
		Data:    s.svc.AuthStatus(),
		Message: "auth mode updated",
	})
}

func (s *Server) handleAuthStatus(c *gin.Context) {
	st := s.svc.AuthStatus()
	c.JSON(http.StatusOK, Response{
		Code: 200,
		Data: gin.H{
			"configured": st.Configured,
			"mode":       st.Mode,
			"detail":     st.Detail,
			"browsers":   s.svc.AllowedBrowsers(),
		},
		Message: string(st.Mode),
	})
}
