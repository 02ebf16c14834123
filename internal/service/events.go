package service

import ws "billing/internal/websocket"

// EventPublisher pushes ledger changes to live clients. A nil publisher is
// allowed and drops everything.
type EventPublisher interface {
	Publish(event ws.Event)
}

func publish(p EventPublisher, name string, data map[string]any) {
	if p == nil {
		return
	}
	p.Publish(ws.Event{Event: name, Data: data})
}
