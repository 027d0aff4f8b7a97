package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for both the sync agent and the
// reference gateway.
type Config struct {
	Environment  string
	AgentPort    string
	GatewayPort  string
	GatewayURL   string
	SocketURL    string
	UserID       string
	DatabaseDSN  string
	AMQPURL      string
	AMQPExchange string
	OTLPEndpoint string
	DebugRoutes  bool
}

// AgentAddress returns the listen address for the agent's HTTP surface.
func (c Config) AgentAddress() string {
	return listenAddress(c.AgentPort)
}

// GatewayAddress returns the listen address for the gateway.
func (c Config) GatewayAddress() string {
	return listenAddress(c.GatewayPort)
}

func listenAddress(port string) string {
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// Load reads configuration from environment variables and an optional
// .env file. All keys are prefixed with AUTOMARKED_.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("AUTOMARKED")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("env", "development")
	v.SetDefault("agent.port", "8091")
	v.SetDefault("gateway.port", "8090")
	v.SetDefault("gateway.url", "http://localhost:8090")
	v.SetDefault("socket.url", "ws://localhost:8090/ws")
	v.SetDefault("amqp.exchange", "automarked.events")
	v.SetDefault("debug.routes", false)

	cfg := Config{
		Environment:  v.GetString("env"),
		AgentPort:    v.GetString("agent.port"),
		GatewayPort:  v.GetString("gateway.port"),
		GatewayURL:   strings.TrimRight(v.GetString("gateway.url"), "/"),
		SocketURL:    v.GetString("socket.url"),
		UserID:       v.GetString("user.id"),
		DatabaseDSN:  v.GetString("db.dsn"),
		AMQPURL:      v.GetString("amqp.url"),
		AMQPExchange: v.GetString("amqp.exchange"),
		OTLPEndpoint: v.GetString("otlp.endpoint"),
		DebugRoutes:  v.GetBool("debug.routes"),
	}

	if cfg.GatewayURL == "" {
		return Config{}, fmt.Errorf("gateway url must not be empty")
	}
	return cfg, nil
}
