package websocketx

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Conn serializes writes; gorilla connections allow one concurrent writer only.
type Conn struct {
	*websocket.Conn
	writeLock    sync.Mutex
	writeTimeout time.Duration
}

func NewConn(c *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{Conn: c, writeTimeout: writeTimeout}
}

// WriteMessage writes one frame. A panic inside the library is returned as an error.
func (conn *Conn) WriteMessage(msgType int, data []byte) error {
	conn.writeLock.Lock()
	defer conn.writeLock.Unlock()
	if conn.writeTimeout > 0 {
		_ = conn.Conn.SetWriteDeadline(time.Now().Add(conn.writeTimeout))
	}
	var err error
	lo.TryCatchWithErrorValue(func() error {
		return conn.Conn.WriteMessage(msgType, data)
	}, func(res any) {
		if e, ok := res.(error); ok {
			err = e
			return
		}
		err = fmt.Errorf("websocket write: %v", res)
	})
	return err
}

func (conn *Conn) Ping() error {
	return conn.WriteMessage(websocket.PingMessage, nil)
}
