package app

import (
	"strings"
	"time"

	"github.com/ecotrace/footprint-backend/internal/platform/envutil"
)

type Config struct {
	JWTSecretKey   string
	AllowedOrigins []string

	// DatasetPath points at the impact factor catalog yaml.
	DatasetPath string
	// ElectricityKgPerKWh is the grid factor the process stage uses for
	// user-reported energy figures.
	ElectricityKgPerKWh float64

	// EpsilonPct is the drift tolerance below which a discrepancy is noise.
	EpsilonPct float64
	AutoSyncEnabled bool
	AuditInterval   time.Duration
	AuditParallelism int

	// CacheStaleAfter bounds how old a cached footprint may be before the
	// aggregator recomputes it inline.
	CacheStaleAfter time.Duration

	JobClaimInterval   time.Duration
	JobJanitorInterval time.Duration
	JobStaleAfter      time.Duration
	JobRetention       time.Duration
}

func LoadConfig() Config {
	origins := strings.Split(envutil.String("ALLOWED_ORIGINS", "http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return Config{
		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		AllowedOrigins: origins,

		DatasetPath:         envutil.String("DATASET_PATH", "configs/impact_factors.yaml"),
		ElectricityKgPerKWh: envutil.Float("ELECTRICITY_KG_PER_KWH", 0.82),

		EpsilonPct:       envutil.Float("CONSISTENCY_EPSILON_PCT", 1),
		AutoSyncEnabled:  envutil.Bool("CONSISTENCY_AUTO_SYNC", true),
		AuditInterval:    envutil.Duration("CONSISTENCY_AUDIT_INTERVAL", 24*time.Hour),
		AuditParallelism: envutil.Int("CONSISTENCY_AUDIT_PARALLELISM", 4),

		CacheStaleAfter: envutil.Duration("FOOTPRINT_CACHE_STALE_AFTER", 30*24*time.Hour),

		JobClaimInterval:   envutil.Duration("JOB_CLAIM_INTERVAL", time.Second),
		JobJanitorInterval: envutil.Duration("JOB_JANITOR_INTERVAL", time.Minute),
		JobStaleAfter:      envutil.Duration("JOB_STALE_AFTER", 2*time.Minute),
		JobRetention:       envutil.Duration("JOB_RETENTION", 7*24*time.Hour),
	}
}
