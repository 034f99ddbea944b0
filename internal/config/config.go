// momo-gateway/internal/config/config.go
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	apperr "github.com/example/momo-gateway/pkg/errors"
)

// Scope selects one of the two independent credential/endpoint families
// against the provider.
type Scope string

const (
	ScopeCollection   Scope = "collection"
	ScopeDisbursement Scope = "disbursement"
)

// CredentialSet is the full API identity for one scope. Immutable once loaded.
type CredentialSet struct {
	Scope           Scope
	UserID          string
	APIKey          string
	SubscriptionKey string
	CallbackBaseURL string
}

// Config is everything the gateway binaries read from the environment.
type Config struct {
	BaseURL           string
	TargetEnvironment string // sandbox | production
	WebhookSecret     string
	Collection        CredentialSet
	Disbursement      CredentialSet

	HTTPAddr            string
	DatabaseURL         string
	KafkaBrokers        []string
	ReconciliationTopic string
	ReconcileInterval   time.Duration
	ReconcileMinAge     time.Duration
	ReconcileGiveUp     time.Duration
}

// Load reads and validates the full configuration. Missing required
// variables fail fast with the variable named in the error.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		ReconciliationTopic: getEnv("KAFKA_RECONCILIATION_TOPIC", "momo.reconciliation"),
		ReconcileInterval:   getDuration("RECONCILE_INTERVAL", time.Minute),
		ReconcileMinAge:     getDuration("RECONCILE_MIN_AGE", 2*time.Minute),
		ReconcileGiveUp:     getDuration("RECONCILE_GIVE_UP", 24*time.Hour),
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = strings.Split(v, ",")
	}

	var err error
	if cfg.BaseURL, err = requireEnv("MOMO_BASE_URL"); err != nil {
		return nil, err
	}
	if cfg.TargetEnvironment, err = requireEnv("MOMO_TARGET_ENVIRONMENT"); err != nil {
		return nil, err
	}
	if cfg.TargetEnvironment != "sandbox" && cfg.TargetEnvironment != "production" {
		return nil, apperr.New(apperr.KindConfig, "bad_environment",
			"MOMO_TARGET_ENVIRONMENT must be sandbox or production")
	}
	if cfg.WebhookSecret, err = requireEnv("MOMO_WEBHOOK_SECRET"); err != nil {
		return nil, err
	}
	callbackBase, err := requireEnv("MOMO_CALLBACK_BASE_URL")
	if err != nil {
		return nil, err
	}

	if cfg.Collection, err = loadScope(ScopeCollection, callbackBase); err != nil {
		return nil, err
	}
	if cfg.Disbursement, err = loadScope(ScopeDisbursement, callbackBase); err != nil {
		return nil, err
	}

	// Supported sandbox fallback: some sandboxes only issue one identity.
	// Flag it, never block on it.
	if cfg.Collection.UserID == cfg.Disbursement.UserID &&
		cfg.Collection.APIKey == cfg.Disbursement.APIKey {
		log.Printf("[config] collection and disbursement share one identity (sandbox fallback)")
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg, nil
}

// Credentials resolves the credential set for a scope. Pure lookup,
// no network I/O.
func (c *Config) Credentials(scope Scope) (CredentialSet, error) {
	switch scope {
	case ScopeCollection:
		return c.Collection, nil
	case ScopeDisbursement:
		return c.Disbursement, nil
	}
	return CredentialSet{}, apperr.New(apperr.KindConfig, "bad_scope",
		fmt.Sprintf("unknown credential scope %q", scope))
}

func loadScope(scope Scope, callbackBase string) (CredentialSet, error) {
	prefix := "MOMO_" + strings.ToUpper(string(scope))
	cs := CredentialSet{Scope: scope, CallbackBaseURL: callbackBase}
	var err error
	if cs.UserID, err = requireEnv(prefix + "_USER_ID"); err != nil {
		return CredentialSet{}, err
	}
	if cs.APIKey, err = requireEnv(prefix + "_API_KEY"); err != nil {
		return CredentialSet{}, err
	}
	if cs.SubscriptionKey, err = requireEnv(prefix + "_SUBSCRIPTION_KEY"); err != nil {
		return CredentialSet{}, err
	}
	return cs, nil
}

func requireEnv(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", apperr.New(apperr.KindConfig, "missing_env", key+" is required")
	}
	return v, nil
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getDuration(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
			return parsed
		}
		log.Printf("[config] ignoring bad duration %s=%q, using %s", k, v, d)
	}
	return d
}
