// Package preferences persists the operator's console settings.
package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/humanplus/posture-console/internal/model"
	"github.com/humanplus/posture-console/pkg/logger"
)

// Key is the store key of the settings object.
const Key = "settings.pref"

// KeyFor scopes the settings object to one operator.
func KeyFor(uid string) string {
	if uid == "" {
		return Key
	}
	return Key + ":" + uid
}

type Service struct {
	kv  KV
	log *logger.Logger
	// serializes read-modify-write cycles
	mu sync.Mutex
}

func NewService(kv KV, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{kv: kv, log: log.With("preferences")}
}

// Load returns the stored settings. A missing, unreadable or corrupt object
// yields empty preferences.
func (s *Service) Load(ctx context.Context, uid string) model.Preferences {
	var prefs model.Preferences
	raw := s.read(ctx, uid)
	if v, ok := raw["language"]; ok {
		var lang string
		if json.Unmarshal(v, &lang) == nil {
			prefs.Language = &lang
		}
	}
	if v, ok := raw["notifications"]; ok {
		var enabled bool
		if json.Unmarshal(v, &enabled) == nil {
			prefs.Notifications = &enabled
		}
	}
	return prefs
}

func (s *Service) SetLanguage(ctx context.Context, uid, language string) (model.Preferences, error) {
	return s.merge(ctx, uid, "language", language)
}

func (s *Service) SetNotifications(ctx context.Context, uid string, enabled bool) (model.Preferences, error) {
	return s.merge(ctx, uid, "notifications", enabled)
}

func (s *Service) merge(ctx context.Context, uid, field string, value any) (model.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := s.read(ctx, uid)
	encoded, err := json.Marshal(value)
	if err != nil {
		return model.Preferences{}, fmt.Errorf("failed to encode %s: %w", field, err)
	}
	raw[field] = encoded

	out, err := json.Marshal(raw)
	if err != nil {
		return model.Preferences{}, fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := s.kv.Set(ctx, KeyFor(uid), string(out)); err != nil {
		return model.Preferences{}, fmt.Errorf("failed to save preferences: %w", err)
	}
	return s.Load(ctx, uid), nil
}

func (s *Service) read(ctx context.Context, uid string) map[string]json.RawMessage {
	raw := map[string]json.RawMessage{}
	v, ok, err := s.kv.Get(ctx, KeyFor(uid))
	if err != nil {
		s.log.Warn("failed to read preferences", "uid", uid, "error", err.Error())
		return raw
	}
	if !ok {
		return raw
	}
	if err := json.Unmarshal([]byte(v), &raw); err != nil || raw == nil {
		s.log.Warn("discarding unreadable preferences", "uid", uid)
		return map[string]json.RawMessage{}
	}
	return raw
}
