package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	keys := []string{"BABILADO_PASSWORD_REJECT_VERY_WEAK"}
	for _, r := range envRules {
		keys = append(keys, r.key)
	}
	for _, k := range keys {
		// Setenv registers the restore; Unsetenv makes the key absent for FromEnv.
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy != def.Policy {
		t.Fatalf("policy=%+v want %+v", cfg.Policy, def.Policy)
	}
	if cfg.Params.MemoryKiB != def.Params.MemoryKiB {
		t.Fatalf("memory mismatch")
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("BABILADO_PASSWORD_MIN_LEN", "10")
	t.Setenv("BABILADO_PASSWORD_MAX_LEN", "200")
	t.Setenv("BABILADO_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("BABILADO_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("BABILADO_ARGON2_ITERATIONS", "4")
	t.Setenv("BABILADO_ARGON2_PARALLELISM", "2")
	t.Setenv("BABILADO_ARGON2_SALT_LEN", "24")
	t.Setenv("BABILADO_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"min above max": {"BABILADO_PASSWORD_MIN_LEN": "20", "BABILADO_PASSWORD_MAX_LEN": "10"},
		"not a number":  {"BABILADO_ARGON2_ITERATIONS": "many"},
		"out of range":  {"BABILADO_ARGON2_MEMORY_KIB": "1"},
		"bad bool":      {"BABILADO_PASSWORD_REJECT_VERY_WEAK": "sometimes"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
