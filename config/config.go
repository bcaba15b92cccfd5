package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
}

type GameConfig struct {
	PieceBatchSize   int `mapstructure:"piece_batch_size"`
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
}

type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Driver   string         `mapstructure:"driver"` // "gorm" or "pq"
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("game.piece_batch_size", 3)
	viper.SetDefault("game.heartbeat_seconds", 60)
	viper.SetDefault("database.driver", "gorm")

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
