package config

import "time"

// TMDBConfig configures the movie metadata provider client.
type TMDBConfig struct {
	APIKey   string        // TMDB v3 api_key
	BaseURL  string        // API root, overridable for tests and proxies
	Region   string        // ISO 3166-1 country whose release dates count
	Timeout  time.Duration // bound on one provider call
	RPS      float64       // outbound requests per second
	Burst    int
	Language string
}

// LoadTMDBConfig reads the TMDB_* variables.  TMDB_API_KEY is required.
func LoadTMDBConfig() TMDBConfig {
	c := TMDBConfig{
		APIKey:   must("TMDB_API_KEY"),
		BaseURL:  envStr("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		Region:   envStr("TMDB_REGION", "DE"),
		Timeout:  envDur("TMDB_TIMEOUT", 8*time.Second),
		RPS:      envFloat("TMDB_RPS", 20),
		Burst:    envInt("TMDB_BURST", 5),
		Language: envStr("TMDB_LANGUAGE", "de-DE"),
	}
	if c.Timeout <= 0 {
		c.Timeout = 8 * time.Second
	}
	if c.RPS <= 0 {
		c.RPS = 20
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	return c
}
