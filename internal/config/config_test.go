package config

import "testing"

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LABNORM_DELIMITER", ";")
	t.Setenv("LABNORM_CHUNK_SIZE", "500")
	t.Setenv("LABNORM_WORKERS", "not-a-number")
	t.Setenv("LABNORM_HARMONIZE", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Comma() != ';' || cfg.ChunkSize != 500 || cfg.Workers != 4 || !cfg.Harmonize {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "valid", cfg: Config{Delimiter: "|", ChunkSize: 1, Workers: 1}, ok: true},
		{name: "long delimiter", cfg: Config{Delimiter: "||", ChunkSize: 1, Workers: 1}},
		{name: "zero chunk", cfg: Config{Delimiter: "|", Workers: 1}},
		{name: "zero workers", cfg: Config{Delimiter: "|", ChunkSize: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err == nil) != tc.ok {
				t.Fatalf("got %v want ok=%v", err, tc.ok)
			}
		})
	}
}
