// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/messagevm/messagevm"
)

const (
	eventBufferSize = 256
	writeWait       = 10 * time.Second
)

// eventsHandler streams every accepted write to a websocket subscriber.
// A subscriber that falls [eventBufferSize] events behind is disconnected so
// that it never blocks the registry.
type eventsHandler struct {
	vm       *messagevm.VM
	upgrader websocket.Upgrader
}

func newEventsHandler(vm *messagevm.VM) *eventsHandler {
	return &eventsHandler{
		vm: vm,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *eventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var (
		events       = make(chan messagevm.Event, eventBufferSize)
		overflow     = make(chan struct{})
		overflowOnce sync.Once
	)

	// Subscribe before the handshake completes so the subscriber sees every
	// write accepted after its dial returns.
	subscriptionID, err := h.vm.Subscribe(messagevm.ObserverFunc(func(e messagevm.Event) {
		select {
		case events <- e:
		default:
			overflowOnce.Do(func() { close(overflow) })
		}
	}))
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.vm.Unsubscribe(subscriptionID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("failed to upgrade events connection", "err", err)
		return
	}
	defer conn.Close()

	log.Debug("events subscriber connected", "subscriptionID", subscriptionID, "remote", r.RemoteAddr)

	// Subscribers never send anything; reading only surfaces the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-overflow:
			log.Warn("disconnecting slow events subscriber", "subscriptionID", subscriptionID)
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "subscriber too slow"),
				time.Now().Add(writeWait),
			)
			return
		case e := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(messagevm.NewEventMessage(e)); err != nil {
				log.Debug("failed to write event", "subscriptionID", subscriptionID, "err", err)
				return
			}
		}
	}
}
