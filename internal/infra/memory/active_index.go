package memory

import (
	"context"
	"sync"
)

// ActiveIndex tracks the current unsolved question per channel. It is runtime
// state only; the lifecycle manager rebuilds it from storage on startup.
type ActiveIndex struct {
	mu     sync.RWMutex
	active map[int64]int64
}

func NewActiveIndex() *ActiveIndex {
	return &ActiveIndex{active: make(map[int64]int64)}
}

func (i *ActiveIndex) Get(_ context.Context, channelID int64) (int64, bool, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	questionID, ok := i.active[channelID]
	return questionID, ok, nil
}

func (i *ActiveIndex) Set(_ context.Context, channelID, questionID int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.active[channelID] = questionID
	return nil
}

func (i *ActiveIndex) Clear(_ context.Context, channelID int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.active, channelID)
	return nil
}
