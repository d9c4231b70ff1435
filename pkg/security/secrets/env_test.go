package secrets

import (
	"context"
	"errors"
	"testing"
)

func TestEnvProvider_GetSecret(t *testing.T) {
	tests := []struct {
		name       string
		secretName string
		envVar     string
		envValue   string
		want       string
		wantErr    bool
	}{
		{name: "dashed name", secretName: "poe-api-key", envVar: "TEST_SECRET_POE_API_KEY", envValue: "v1", want: "v1"},
		{name: "dotted name", secretName: "local.key", envVar: "TEST_SECRET_LOCAL_KEY", envValue: "v2", want: "v2"},
		{name: "empty value", secretName: "blank", envVar: "TEST_SECRET_BLANK", envValue: "", wantErr: true},
		{name: "missing", secretName: "absent-key", wantErr: true},
	}

	p := NewEnvProvider("TEST_SECRET_")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envVar != "" {
				t.Setenv(tt.envVar, tt.envValue)
			}
			got, err := p.GetSecret(context.Background(), tt.secretName)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Errorf("GetSecret() error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetSecret() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("GetSecret() = %q, want %q", got, tt.want)
			}
		})
	}
}
