package config

import "time"

// RelayConfig holds configuration for the outbox relay service.
type RelayConfig struct {
	DatabaseURL    string        `env:"DB_CONNECTION_STRING,notEmpty"`
	RabbitMQURL    string        `env:"RABBITMQ_URL,notEmpty"`
	PulseQueueName string        `env:"PULSE_QUEUE_NAME" envDefault:"pulse-events"`
	BatchSize      int           `env:"RELAY_BATCH_SIZE" envDefault:"50"`
	PollInterval   time.Duration `env:"RELAY_POLL_INTERVAL" envDefault:"30s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`
}

func LoadRelayConfig() *RelayConfig {
	var cfg RelayConfig
	if err := ParseEnv(&cfg); err != nil {
		panic(err.Error())
	}
	return &cfg
}
