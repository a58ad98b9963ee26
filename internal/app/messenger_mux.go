package app

import (
	"context"
	"fmt"
	"sync"

	"quizbot-service/internal/domain"
)

// MessengerMux routes outbound messages to a transport by the scheme of the
// chat address ("tg:42" goes to the "tg" messenger).
type MessengerMux struct {
	mu     sync.RWMutex
	routes map[string]Messenger
}

func NewMessengerMux() *MessengerMux {
	return &MessengerMux{routes: make(map[string]Messenger)}
}

func (m *MessengerMux) Handle(scheme string, messenger Messenger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[scheme] = messenger
}

func (m *MessengerMux) Send(ctx context.Context, chat string, reply domain.Reply) error {
	messenger, err := m.route(chat)
	if err != nil {
		return err
	}
	return messenger.Send(ctx, chat, reply)
}

func (m *MessengerMux) Acknowledge(ctx context.Context, ev domain.Event, text string) error {
	messenger, err := m.route(ev.Chat)
	if err != nil {
		return err
	}
	return messenger.Acknowledge(ctx, ev, text)
}

func (m *MessengerMux) DismissChoices(ctx context.Context, ev domain.Event) error {
	messenger, err := m.route(ev.Chat)
	if err != nil {
		return err
	}
	return messenger.DismissChoices(ctx, ev)
}

func (m *MessengerMux) route(chat string) (Messenger, error) {
	scheme, _, ok := domain.SplitAddress(chat)
	if !ok {
		return nil, fmt.Errorf("malformed chat address %q", chat)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	messenger, ok := m.routes[scheme]
	if !ok {
		return nil, fmt.Errorf("no messenger for %q", scheme)
	}
	return messenger, nil
}
