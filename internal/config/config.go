package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string `yaml:"env" env-default:"local"`
	Storage struct {
		Driver     string `yaml:"driver" env-default:"sqlite"`
		SqlitePath string `yaml:"sqlite_path" env-default:"botconstructor.db"`
	} `yaml:"storage"`
	Mongo struct {
		Host     string `yaml:"host" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env-default:"27017"`
		User     string `yaml:"user" env-default:""`
		Password string `yaml:"password" env-default:""`
		Database string `yaml:"database" env-default:"botconstructor"`
	} `yaml:"mongo"`
	Redis struct {
		Enabled  bool   `yaml:"enabled" env-default:"false"`
		Addr     string `yaml:"addr" env-default:"127.0.0.1:6379"`
		Password string `yaml:"password" env-default:""`
		DB       int    `yaml:"db" env-default:"0"`
		Prefix   string `yaml:"prefix" env-default:"botconstructor:"`
	} `yaml:"redis"`
	Runtime struct {
		StartGrace   time.Duration `yaml:"start_grace" env-default:"3s"`
		StopTimeout  time.Duration `yaml:"stop_timeout" env-default:"10s"`
		RestartDelay time.Duration `yaml:"restart_delay" env-default:"1s"`
		HistorySize  int           `yaml:"history_size" env-default:"50"`
		Autostart    bool          `yaml:"autostart" env-default:"true"`
	} `yaml:"runtime"`
	Tasks struct {
		Workers     int           `yaml:"workers" env-default:"4"`
		MaxAttempts int           `yaml:"max_attempts" env-default:"3"`
		Backoff     time.Duration `yaml:"backoff" env-default:"5s"`
		MaxBackoff  time.Duration `yaml:"max_backoff" env-default:"60s"`
		ResultTTL   time.Duration `yaml:"result_ttl" env-default:"24h"`
	} `yaml:"tasks"`
	Health struct {
		Enabled  bool          `yaml:"enabled" env-default:"true"`
		Interval time.Duration `yaml:"interval" env-default:"5m"`
	} `yaml:"health"`
	Seed   string `yaml:"seed" env-default:""`
	Listen struct {
		BindIP string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port   string `yaml:"port" env-default:"9100"`
		ApiKey string `yaml:"key" env-default:""`
	} `yaml:"listen"`
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("%s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
	})
	return instance
}
