package secrets

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type mapProvider map[string]string

func (m mapProvider) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (m mapProvider) Provider() string { return "map" }

type failingProvider struct{}

func (failingProvider) GetSecret(context.Context, string) (string, error) {
	return "", errors.New("permission denied")
}

func (failingProvider) Provider() string { return "failing" }

func TestManager_GetSecret_Order(t *testing.T) {
	m := NewManager(
		mapProvider{"a": "first"},
		mapProvider{"a": "second", "b": "only-second"},
	)

	tests := []struct {
		name string
		want string
	}{
		{"a", "first"},
		{"b", "only-second"},
	}
	for _, tt := range tests {
		got, err := m.GetSecret(context.Background(), tt.name)
		if err != nil {
			t.Fatalf("GetSecret(%q) error = %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("GetSecret(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}

	if _, err := m.GetSecret(context.Background(), "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSecret(c) error = %v, want ErrNotFound", err)
	}
}

func TestManager_GetSecret_ProviderFailureStops(t *testing.T) {
	m := NewManager(failingProvider{}, mapProvider{"a": "x"})
	if _, err := m.GetSecret(context.Background(), "a"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("GetSecret() error = %v, want provider failure", err)
	}
}

func TestManager_Expand(t *testing.T) {
	m := NewManager(mapProvider{"poe-api-key": "sk-123", "host": "example.com"})

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "no reference", value: "plain", want: "plain"},
		{name: "whole value", value: "${secret:poe-api-key}", want: "sk-123"},
		{name: "embedded", value: "https://${secret:host}/bot", want: "https://example.com/bot"},
		{name: "two references", value: "${secret:host}:${secret:poe-api-key}", want: "example.com:sk-123"},
		{name: "unknown", value: "${secret:missing}", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Expand(context.Background(), tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Expand() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasReference(t *testing.T) {
	if !HasReference("${secret:x}") {
		t.Error("HasReference(${secret:x}) = false, want true")
	}
	if HasReference("$secret:x") {
		t.Error("HasReference($secret:x) = true, want false")
	}
}
