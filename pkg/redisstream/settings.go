package redisstream

// Settings configures the update bus. When Enabled is false updates stay in
// process on a go-channel pub/sub.
type Settings struct {
	Enabled bool   `mapstructure:"redis-enabled" yaml:"redis-enabled"`
	Addr    string `mapstructure:"redis-addr" yaml:"redis-addr"`
	// Group prefixes the consumer group created for every subscriber.
	Group string `mapstructure:"redis-group" yaml:"redis-group"`
}

func DefaultSettings() Settings {
	return Settings{Addr: "localhost:6379", Group: "chat-ui"}
}
