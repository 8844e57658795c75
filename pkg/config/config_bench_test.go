package config

import (
	"testing"
)

func BenchmarkConfig_Validate(b *testing.B) {
	cfg := Defaults()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}

func BenchmarkConfig_LoadFromEnv(b *testing.B) {
	b.Setenv("ENGINE_BASE_SIZE", "5")
	b.Setenv("DISCOVERY_SERIES", "KXBTCD,KXETHD")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = LoadFromEnv()
	}
}
