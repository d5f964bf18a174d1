package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address         string
	Auth            AuthConfig
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type AuthConfig struct {
	// An empty secret disables the auth middleware entirely; deciding who
	// may open a project lives upstream of this server.
	JWTSecret string `mapstructure:"jwtSecret"`
}

type ConnectionLimitConfig struct {
	// Maximum concurrent websocket connections per remote IP. Zero disables.
	MaxPerIP int `mapstructure:"maxPerIP"`
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	SendBuffer  int           `mapstructure:"sendBuffer"`
}

type LogConfig struct {
	Level  string
	Format string
}
