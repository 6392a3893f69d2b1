package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/FIREguardSPB/spatial-pinwheel/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	settingsKey       = "decision:settings"
	settingsUpdatedCh = "decision:settings_updated"
)

// SettingsStore reads the shared decision settings document and watches
// for update announcements. The document is a partial JSON object;
// absent fields fall back to built-in defaults when resolved.
type SettingsStore struct {
	client *goredis.Client
}

// NewSettingsStore wraps an existing Redis client.
func NewSettingsStore(client *goredis.Client) *SettingsStore {
	return &SettingsStore{client: client}
}

// Load fetches the current settings. A missing key yields the zero
// Settings value, which resolves everything to defaults.
func (s *SettingsStore) Load(ctx context.Context) (model.Settings, error) {
	var set model.Settings

	raw, err := s.client.Get(ctx, settingsKey).Result()
	if err == goredis.Nil {
		return set, nil
	}
	if err != nil {
		return set, fmt.Errorf("redis get %s: %w", settingsKey, err)
	}

	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return model.Settings{}, fmt.Errorf("settings document: %w", err)
	}
	return set, nil
}

// Save stores the settings document and announces the update.
func (s *SettingsStore) Save(ctx context.Context, set model.Settings) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("settings marshal: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, settingsKey, data, 0)
	pipe.Publish(ctx, settingsUpdatedCh, "updated")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save settings: %w", err)
	}
	return nil
}

// Watch blocks on the update channel and re-loads settings on every
// announcement, invoking onChange with the fresh document. Returns
// when ctx is cancelled.
func (s *SettingsStore) Watch(ctx context.Context, onChange func(model.Settings)) {
	sub := s.client.Subscribe(ctx, settingsUpdatedCh)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			set, err := s.Load(ctx)
			if err != nil {
				log.Printf("[redis] settings reload failed: %v", err)
				continue
			}
			onChange(set)
		}
	}
}
