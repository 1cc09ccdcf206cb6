package config

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIREBASE_PROJECT_ID": "velour-dev",
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(baseEnv()),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Firestore.ProjectID != "velour-dev" {
		t.Fatalf("expected firestore project to inherit firebase project, got %q", cfg.Firestore.ProjectID)
	}
	if cfg.Events.ProjectID != "velour-dev" {
		t.Fatalf("expected events project to inherit firebase project, got %q", cfg.Events.ProjectID)
	}
	if cfg.PSP.Mode != "simulated" {
		t.Fatalf("expected simulated gateway by default, got %q", cfg.PSP.Mode)
	}
	if cfg.PSP.SimulatedLatency != 1500*time.Millisecond {
		t.Fatalf("unexpected simulated latency: %v", cfg.PSP.SimulatedLatency)
	}
	if cfg.Pricing.FreeShippingThreshold != 7500 {
		t.Fatalf("unexpected free shipping threshold: %d", cfg.Pricing.FreeShippingThreshold)
	}
	if cfg.Pricing.TaxRatePercent != 8 {
		t.Fatalf("unexpected tax rate: %d", cfg.Pricing.TaxRatePercent)
	}
	if cfg.Pricing.CODFee != 599 {
		t.Fatalf("unexpected cod fee: %d", cfg.Pricing.CODFee)
	}
}

func TestLoadOverridesFromEnvMap(t *testing.T) {
	env := baseEnv()
	env["API_SERVER_PORT"] = "9090"
	env["API_SERVER_READ_TIMEOUT"] = "5s"
	env["API_PRICING_DISCOUNT_THRESHOLD"] = "20000"
	env["API_AUTH_MODE"] = "local"
	env["API_AUTH_LOCAL_SECRET"] = "dev-secret"

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected overridden port, got %q", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("expected overridden read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Pricing.DiscountThreshold != 20000 {
		t.Fatalf("expected overridden discount threshold, got %d", cfg.Pricing.DiscountThreshold)
	}
	if cfg.Auth.Mode != "local" {
		t.Fatalf("expected local auth mode, got %q", cfg.Auth.Mode)
	}
}

func TestLoadRejectsInvalidModes(t *testing.T) {
	env := baseEnv()
	env["API_AUTH_MODE"] = "none"
	env["API_PSP_MODE"] = "paypal"

	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
	)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	msg := verr.Error()
	if !strings.Contains(msg, "Auth.Mode") || !strings.Contains(msg, "PSP.Mode") {
		t.Fatalf("unexpected validation message: %s", msg)
	}
}

func TestLoadRequiresLocalSecretInLocalMode(t *testing.T) {
	env := baseEnv()
	env["API_AUTH_MODE"] = "local"

	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
	)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "Auth.LocalSecret") {
		t.Fatalf("unexpected validation message: %s", verr.Error())
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := baseEnv()
	env["API_PSP_MODE"] = "stripe"
	env["API_PSP_STRIPE_API_KEY"] = "sm://projects/velour-dev/secrets/stripe-key"

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://projects/velour-dev/secrets/stripe-key" {
			return "", errors.New("unexpected reference " + ref)
		}
		return "sk_test_resolved", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PSP.StripeAPIKey != "sk_test_resolved" {
		t.Fatalf("expected resolved stripe key, got %q", cfg.PSP.StripeAPIKey)
	}
}

func TestLoadWrapsSecretResolutionFailure(t *testing.T) {
	env := baseEnv()
	env["API_PSP_MODE"] = "stripe"
	env["API_PSP_STRIPE_API_KEY"] = "secret://projects/velour-dev/secrets/stripe-key"

	boom := errors.New("boom")
	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", boom
	})

	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
		WithSecretResolver(resolver),
	)
	var serr *SecretError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SecretError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatal("expected wrapped cause to be preserved")
	}
}
