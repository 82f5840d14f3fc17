package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the memory service.
type Profile struct {
	// Embedding configuration (any OpenAI-compatible provider)
	EmbeddingProvider   string // Provider identifier: openai, siliconflow, ollama, dashscope
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int
	EmbeddingRPS        float64 // Max embedding requests per second (0 = unlimited)

	// Collective memory tuning
	InitialConfidence  float64 // Confidence assigned on first contribution
	ConfirmBoost       float64 // Confidence increment per distinct confirmation
	ConfidenceCap      float64 // Upper bound for confirmation-driven confidence
	RefutePenalty      float64 // Confidence decrement per refutation
	RemovalFloor       float64 // Facts at or below this confidence are removed
	PromotionThreshold int     // Distinct contributors required for promotion

	// Golden answer cache tuning
	GoldenSimilarityThreshold float64 // Minimum cosine similarity for a semantic hit

	// Server/runtime configuration
	Mode    string // "prod", "dev" or "demo"
	Addr    string // Metrics/health listen address
	Port    int    // Metrics/health listen port
	Data    string // Data directory (sqlite driver)
	Driver  string // "postgres" or "sqlite"
	DSN     string
	Version string
}

// Provider default configurations for embedding.
// Used when MEMORIA_EMBEDDING_BASE_URL is not explicitly set.
var embeddingProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "text-embedding-3-small",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "BAAI/bge-m3",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "text-embedding-v3",
	},
	"ollama": {
		BaseURL: "http://localhost:11434/v1",
		Model:   "nomic-embed-text",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEmbeddingEnabled returns true if an embedding API key is configured.
// Without it the semantic paths degrade to deterministic ordering.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.EmbeddingAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	// Embedding configuration
	p.EmbeddingProvider = getEnvOrDefault("MEMORIA_EMBEDDING_PROVIDER", "siliconflow")
	p.EmbeddingAPIKey = getEnvOrDefault("MEMORIA_EMBEDDING_API_KEY", "")
	p.EmbeddingBaseURL = getEnvOrDefault("MEMORIA_EMBEDDING_BASE_URL", "")
	p.EmbeddingModel = getEnvOrDefault("MEMORIA_EMBEDDING_MODEL", "")
	p.EmbeddingDimensions = getEnvOrDefaultInt("MEMORIA_EMBEDDING_DIMENSIONS", 1024)
	p.EmbeddingRPS = getEnvOrDefaultFloat("MEMORIA_EMBEDDING_RPS", 0)

	if p.EmbeddingProvider != "" {
		if _, ok := embeddingProviderDefaults[p.EmbeddingProvider]; !ok {
			slog.Warn("unknown embedding provider, using default: siliconflow", "provider", p.EmbeddingProvider)
			p.EmbeddingProvider = "siliconflow"
		}
	}
	if p.EmbeddingBaseURL == "" || p.EmbeddingModel == "" {
		if defaults, ok := embeddingProviderDefaults[p.EmbeddingProvider]; ok {
			if p.EmbeddingBaseURL == "" {
				p.EmbeddingBaseURL = defaults.BaseURL
			}
			if p.EmbeddingModel == "" {
				p.EmbeddingModel = defaults.Model
			}
		}
	}

	// Collective memory tuning
	p.InitialConfidence = getEnvOrDefaultFloat("MEMORIA_INITIAL_CONFIDENCE", 0.5)
	p.ConfirmBoost = getEnvOrDefaultFloat("MEMORIA_CONFIRM_BOOST", 0.15)
	p.ConfidenceCap = getEnvOrDefaultFloat("MEMORIA_CONFIDENCE_CAP", 0.95)
	p.RefutePenalty = getEnvOrDefaultFloat("MEMORIA_REFUTE_PENALTY", 0.4)
	p.RemovalFloor = getEnvOrDefaultFloat("MEMORIA_REMOVAL_FLOOR", 0.2)
	p.PromotionThreshold = getEnvOrDefaultInt("MEMORIA_PROMOTION_THRESHOLD", 3)

	// Golden answer cache tuning
	p.GoldenSimilarityThreshold = getEnvOrDefaultFloat("MEMORIA_GOLDEN_SIMILARITY_THRESHOLD", 0.80)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver != "postgres" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported driver %q: only 'postgres' and 'sqlite' are supported", p.Driver)
	}

	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for the postgres driver")
	}

	if p.Driver == "sqlite" {
		if p.Data == "" {
			p.Data = "."
		}
		dataDir, err := checkDataDir(p.Data)
		if err != nil {
			slog.Error("failed to check data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
		p.Data = dataDir
		if p.DSN == "" {
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("memoria_%s.db", p.Mode))
		}
	}

	if p.PromotionThreshold <= 0 {
		p.PromotionThreshold = 3
	}
	if p.InitialConfidence <= 0 || p.InitialConfidence > 1 {
		p.InitialConfidence = 0.5
	}
	if p.ConfidenceCap <= 0 || p.ConfidenceCap > 1 {
		p.ConfidenceCap = 0.95
	}
	if p.GoldenSimilarityThreshold <= 0 || p.GoldenSimilarityThreshold > 1 {
		p.GoldenSimilarityThreshold = 0.80
	}

	return nil
}
