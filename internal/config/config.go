// Package config provides structures and loading for the gateway configuration.
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the top-level configuration for the webgate service.
type Config struct {
	Env                     string   `yaml:"env" env-default:"local"`
	StorageConnectionString string   `yaml:"storage_connection_string"`
	AMQPAddress             string   `yaml:"amqp_address"`
	AdminEmails             []string `yaml:"admin_emails"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	Razorpay                `yaml:"razorpay"`
	Funnel                  `yaml:"funnel"`
	Plans                   `yaml:"plans"`
}

// HTTPServer holds the listener settings.
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection holds the client-state store connection settings.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken holds session token signing settings.
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// Razorpay holds the checkout provider credentials and endpoints.
type Razorpay struct {
	KeyID             string        `yaml:"key_id"`
	KeySecret         string        `yaml:"key_secret"`
	APIURL            string        `yaml:"api_url" env-default:"https://api.razorpay.com/v1"`
	CheckoutScriptURL string        `yaml:"checkout_script_url" env-default:"https://checkout.razorpay.com/v1/checkout.js"`
	ReadyTimeout      time.Duration `yaml:"ready_timeout" env-default:"10s"`
}

// Funnel holds the routes the guards redirect unentitled users to,
// plus the allow-list for post-auth redirect targets.
type Funnel struct {
	LoginRoute       string   `yaml:"login_route" env-default:"/authentication"`
	ProfileRoute     string   `yaml:"profile_route" env-default:"/complete-profile"`
	PaywallRoute     string   `yaml:"paywall_route" env-default:"/get-started"`
	DefaultLanding   string   `yaml:"default_landing" env-default:"/"`
	AllowedRedirects []string `yaml:"allowed_redirects"`
}

// Plans holds subscription plan parameters applied on payment confirmation.
type Plans struct {
	PlanID               string        `yaml:"plan_id" env-default:"byonco-plus"`
	SubscriptionTTL      time.Duration `yaml:"subscription_ttl" env-default:"720h"`
	SecondOpinionUses    int           `yaml:"second_opinion_uses" env-default:"1"`
	InflightPaymentTTL   time.Duration `yaml:"inflight_payment_ttl" env-default:"15m"`
	SubscriptionCacheTTL time.Duration `yaml:"subscription_cache_ttl" env-default:"1h"`
}

// MustLoad loads the config from the file named by CONFIG_PATH and exits on failure.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
