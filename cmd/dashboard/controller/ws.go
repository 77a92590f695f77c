package controller

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/JustinTDCT/onlineTracker/service/hub"
)

type wsAPI struct {
	hub   *hub.Hub
	debug bool
}

func (w *wsAPI) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 32768,
		CheckOrigin: func(r *http.Request) bool {
			return checkSameOrigin(r) || (w.debug && loopbackHost(r.Host))
		},
	}
}

func checkSameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// loopbackHost allows local frontend dev servers in debug mode.
func loopbackHost(hostport string) bool {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (w *wsAPI) serve(c *gin.Context) {
	if w.hub == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	conn, err := w.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	w.hub.Serve(conn)
}
