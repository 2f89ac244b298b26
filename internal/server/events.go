package server

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
)

const (
	EventProvisioned = "vm.provisioned"
	EventUpdated     = "vm.updated"
	EventAction      = "vm.action"
)

// DefaultEventSubject is the subject lifecycle events are published on.
const DefaultEventSubject = "vm.events"

// Publisher sends an encoded event to a subject. *natsclient.Publisher
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// Event is the payload published after every successful mutation.
type Event struct {
	Event       string          `json:"event"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Provider    models.Provider `json:"provider"`
	Status      models.Status   `json:"status"`
	Action      models.Action   `json:"action,omitempty"`
	RequestedBy string          `json:"requested_by"`
	Time        int64           `json:"time"`
}

func newEvent(kind string, vm *models.VM, requestedBy string) Event {
	return Event{
		Event:       kind,
		ID:          vm.ID,
		Name:        vm.Name,
		Provider:    vm.Provider,
		Status:      vm.Status,
		RequestedBy: models.Requester(requestedBy),
		Time:        time.Now().Unix(),
	}
}

// publish never fails the caller; delivery problems are only logged.
func (s *Server) publish(ctx context.Context, ev Event) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encode event", zap.String("event", ev.Event), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, s.subject, payload); err != nil {
		s.logger.Warn("publish failed", zap.String("event", ev.Event), zap.String("id", ev.ID), zap.Error(err))
	}
}
