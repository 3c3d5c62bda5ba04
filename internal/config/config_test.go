package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, ":8084", cfg.Server.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Minute, cfg.Reservation.PaymentAttemptTTL)
	assert.Equal(t, 5, cfg.Reservation.ClaimRetryBudget)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Len(t, cfg.Kafka.Topics.All(), 4)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", ":9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("PAYMENT_ATTEMPT_TTL", "10m")
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "12345")

	cfg := Load()

	assert.Equal(t, ":9000", cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Reservation.PaymentAttemptTTL)
	assert.Equal(t, int64(12345), cfg.Telegram.AdminChatID)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("SMTP_ENABLED", "perhaps")
	t.Setenv("AVAILABILITY_CACHE_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.False(t, cfg.Email.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Reservation.AvailabilityTTL)
}
