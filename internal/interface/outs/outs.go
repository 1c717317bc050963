package outs

import (
	"context"
	"fmt"
	"sync"

	"streamBot/internal/domain"
)

// MultiSender routes outgoing messages to the sender registered for the
// target platform. Connection managers register themselves while alive.
type MultiSender struct {
	mu      sync.RWMutex
	senders map[domain.Platform]domain.OutgoingMessagePort
}

func NewMultiSender() *MultiSender {
	return &MultiSender{
		senders: make(map[domain.Platform]domain.OutgoingMessagePort),
	}
}

func (m *MultiSender) Register(platform domain.Platform, sender domain.OutgoingMessagePort) {
	if sender == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.senders[platform] = sender
}

func (m *MultiSender) Unregister(platform domain.Platform) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.senders, platform)
}

func (m *MultiSender) SendMessage(ctx context.Context, platform domain.Platform, channelID, text string) error {
	m.mu.RLock()
	sender, ok := m.senders[platform]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no sender registered for platform %s", platform)
	}
	return sender.SendMessage(ctx, platform, channelID, text)
}
