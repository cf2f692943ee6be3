package web

import (
	"strings"
	"time"

	"github.com/kirsrus/rjpeg2tiff/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo"
)

// Events websocket с событиями изменения состояния заданий
func (m Web) Events(path string) {
	m.e.GET(path, func(c echo.Context) error {
		conn, err := m.upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			m.log.Warnf("ошибка подключения websocket: %v", err)
			return nil
		}
		defer func() { _ = conn.Close() }()

		id := uuid.New().String()
		events := make(chan model.JobEvent, eventQueue)
		m.subscribers.Store(id, events)
		defer m.subscribers.Delete(id)
		m.log.Debugf("подписчик %s подключен", id)

		// Входящие сообщения не ожидаются, чтение нужно только для обнаружения закрытия
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
						!strings.Contains(err.Error(), "use of closed network connection") {
						m.log.Debugf("подписчик %s: %v", id, err)
					}
					return
				}
			}
		}()

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()
		for {
			select {
			case <-m.ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeTimeout))
				return nil
			case <-done:
				m.log.Debugf("подписчик %s отключен", id)
				return nil
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					return nil
				}
			case event := <-events:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(event); err != nil {
					m.log.Warnf("ошибка отправки события подписчику %s: %v", id, err)
					return nil
				}
			}
		}
	})
}

// JobChanged рассылка события всем подписчикам. Переполненная очередь подписчика пропускается.
func (m Web) JobChanged(event model.JobEvent) {
	m.subscribers.Range(func(key, value interface{}) bool {
		events, ok := value.(chan model.JobEvent)
		if !ok {
			m.log.Errorf("в пуле подписчиков неожиданный тип данных: %T", value)
			return true
		}
		select {
		case events <- event:
		default:
			m.log.Warnf("очередь событий подписчика %s переполнена", key)
		}
		return true
	})
}
