package main

import (
	"context"
	"log/slog"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/storage"
)

// seedDemo registers provider "demo" with a 30 minute service, open 09:00-17:00 on weekdays.
func seedDemo(ctx context.Context, store *storage.MemoryStore, logger *slog.Logger) error {
	p := store.AddProvider(model.Provider{Username: "demo", Timezone: "UTC"})
	svc := store.AddService(model.Service{ProviderID: p.ID, Name: "Intro call", DurationMinutes: 30})

	rules := make([]model.AvailabilityRule, 0, 5)
	for day := 1; day <= 5; day++ {
		rules = append(rules, model.AvailabilityRule{
			ProviderID:     p.ID,
			DayOfWeek:      day,
			StartTimeLocal: "09:00:00",
			EndTimeLocal:   "17:00:00",
		})
	}
	if err := store.ReplaceRules(ctx, p.ID, rules); err != nil {
		return err
	}
	logger.Info("demo data seeded", "provider_id", p.ID, "username", p.Username, "service_id", svc.ID)
	return nil
}
