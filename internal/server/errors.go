package server

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/guiyumin/mediagrab/internal/core/fault"
)

const (
	msgAgeRestricted = "This video is age-restricted. Configure your browser in Settings to access age-restricted content."
	msgUnavailable   = "This video is unavailable or private."
	msgPrivateVideo  = "This is a private video and cannot be accessed."
	msgLoginRequired = "This content requires login. Try configuring your browser in Settings."
	msgPrivatePost   = "This is a private post and cannot be accessed."
)

// classification is a user-facing reading of an extractor failure
type classification struct {
	message       string
	ageRestricted bool
}

// classify maps common yt-dlp messages to something a user can act on.
// Unrecognized messages pass through unchanged.
func classify(msg string) classification {
	switch {
	case strings.Contains(msg, "Sign in to confirm your age"),
		strings.Contains(msg, "age-restricted"),
		strings.Contains(msg, "confirm you"):
		return classification{message: msgAgeRestricted, ageRestricted: true}
	case strings.Contains(msg, "Video unavailable"):
		return classification{message: msgUnavailable}
	case strings.Contains(msg, "Private video"):
		return classification{message: msgPrivateVideo}
	case strings.Contains(msg, "login"), strings.Contains(msg, "Login"):
		return classification{message: msgLoginRequired}
	case strings.Contains(msg, "private"), strings.Contains(msg, "Private"):
		return classification{message: msgPrivatePost}
	}
	return classification{message: msg}
}

// userMessage is the text shown to clients for err
func userMessage(err error) string {
	msg := fault.MessageOf(err)
	if fault.KindOf(err) == fault.KindToolExecution {
		return classify(msg).message
	}
	return msg
}

// statusFor maps an error kind to an HTTP status
func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.KindInvalidInput:
		return http.StatusBadRequest
	case fault.KindAccessDenied:
		return http.StatusForbidden
	case fault.KindNotFound:
		return http.StatusNotFound
	case fault.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err in the response envelope
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := fault.MessageOf(err)
	var data any

	if fault.KindOf(err) == fault.KindToolExecution {
		cl := classify(msg)
		msg = cl.message
		if cl.ageRestricted {
			data = gin.H{"isAgeRestricted": true}
		}
	}
	if status == http.StatusInternalServerError {
		log.Printf("[server] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}

	c.JSON(status, Response{
		Code:    status,
		Data:    data,
		Message: msg,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    400,
		Data:    nil,
		Message: msg,
	})
}
