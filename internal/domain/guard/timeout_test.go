package guard

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/i18n"
)

func TestNewTimeout(t *testing.T) {
	tests := []struct {
		name    string
		millis  int64
		wantErr bool
	}{
		{"zero", 0, false},
		{"default", DefaultTimeoutMillis, false},
		{"one millisecond", 1, false},
		{"negative", -1, true},
		{"very negative", -1_800_000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTimeout(tt.millis, tagResolver, language.English)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewTimeout(%d) error = %v, wantErr %v", tt.millis, err, tt.wantErr)
			}
			if tt.wantErr {
				var negErr *NegativeTimeoutError
				if !errors.As(err, &negErr) {
					t.Fatalf("error = %T, want *NegativeTimeoutError", err)
				}
				if negErr.Value != tt.millis {
					t.Errorf("Value = %d, want %d", negErr.Value, tt.millis)
				}
				return
			}
			if got.Millis() != tt.millis {
				t.Errorf("Millis() = %d, want %d", got.Millis(), tt.millis)
			}
		})
	}
}

func TestNewTimeout_LocalizedMessage(t *testing.T) {
	catalog := i18n.ResolverFunc(func(key string, locale language.Tag) string {
		if key != i18n.KeyTimeoutNegative {
			return key
		}
		if locale == language.Korean {
			return "세션 타임아웃은 음수일 수 없습니다: {value}"
		}
		return "session timeout must not be negative: {value}"
	})

	_, err := NewTimeout(-5, catalog, language.Korean)
	if err == nil {
		t.Fatal("NewTimeout(-5) error = nil")
	}
	if got, want := err.Error(), "세션 타임아웃은 음수일 수 없습니다: -5"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	_, err = NewTimeout(-5, nil, language.English)
	if got, want := err.Error(), "error.timeout_negative: -5"; got != want {
		t.Errorf("Error() without catalog = %q, want %q", got, want)
	}
}

func TestTimeout_Duration(t *testing.T) {
	to, err := NewTimeout(1_500, nil, language.Und)
	if err != nil {
		t.Fatalf("NewTimeout() error = %v", err)
	}
	if to.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration() = %v, want 1.5s", to.Duration())
	}
}
