package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// Defaults for the pipeline tunables. Each one can be overridden through the
// environment; see Load.
const (
	DefaultScoreThreshold    = 150.0
	DefaultCitationThreshold = 70
	DefaultSearchTopN        = 5
	DefaultSummaryThreshold  = 8
	DefaultSearchTimeout     = 30 * time.Second
)

// Config holds everything the service needs, resolved once at startup.
type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string

	GroundXAPIKey  string
	GroundXBaseURL string

	Company   string
	ConfigDir string
	StaticDir string

	// Optional. When empty the session history lives in process memory.
	PostgresDSN string

	LangSmithAPIKey  string
	LangSmithURL     string
	LangSmithProject string

	ChatModel       string
	ClassifierModel string
	TranslateModel  string
	SummaryModel    string

	ScoreThreshold    float64
	CitationThreshold int
	SearchTopN        int
	SummaryThreshold  int
	SearchTimeout     time.Duration

	ListenAddr string
}

// Bucket identifies one GroundX content bucket from the company config.
type Bucket struct {
	ID   string
	Name string
}

// Company is the per-company configuration loaded from
// <ConfigDir>/<company>/config.json.
type Company struct {
	Domain   string
	Buckets  []Bucket
	Keywords []string
}

func Load() Config {
	return Config{
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),

		GroundXAPIKey:  os.Getenv("GROUNDX_API_KEY"),
		GroundXBaseURL: getEnv("GROUNDX_BASE_URL", "https://api.groundx.ai"),

		Company:   getEnv("EMPRESA", "default_company"),
		ConfigDir: getEnv("CONFIG_DIR", "config"),
		StaticDir: getEnv("STATIC_DIR", "static"),

		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		LangSmithAPIKey:  os.Getenv("LANGSMITH_API_KEY"),
		LangSmithURL:     getEnv("LANGSMITH_ENDPOINT", "https://api.smith.langchain.com"),
		LangSmithProject: getEnv("LANGSMITH_PROJECT", getEnv("EMPRESA", "default_company")),

		ChatModel:       getEnv("CHAT_MODEL", "gpt-4o-mini"),
		ClassifierModel: getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
		TranslateModel:  getEnv("TRANSLATE_MODEL", "gpt-3.5-turbo"),
		SummaryModel:    getEnv("SUMMARY_MODEL", "gpt-3.5-turbo"),

		ScoreThreshold:    getEnvFloat("SCORE_THRESHOLD", DefaultScoreThreshold),
		CitationThreshold: getEnvInt("CITATION_THRESHOLD", DefaultCitationThreshold),
		SearchTopN:        getEnvInt("SEARCH_TOP_N", DefaultSearchTopN),
		SummaryThreshold:  getEnvInt("SUMMARY_THRESHOLD", DefaultSummaryThreshold),
		SearchTimeout:     getEnvDuration("SEARCH_TIMEOUT", DefaultSearchTimeout),

		ListenAddr: getEnv("LISTEN_ADDR", ":5000"),
	}
}

// Validate reports the configuration errors that must keep the process from
// serving traffic.
func (c Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is missing in environment variables")
	}
	if c.GroundXAPIKey == "" {
		return fmt.Errorf("GROUNDX_API_KEY is missing in environment variables")
	}
	return nil
}

// CompanyFile is the path of the per-company JSON config.
func (c Config) CompanyFile() string {
	return filepath.Join(c.ConfigDir, c.Company, "config.json")
}

// DocsDir is the directory holding the citable documents for the company.
func (c Config) DocsDir() string {
	return filepath.Join(c.StaticDir, c.Company, "docs")
}

// DocsRoute is the public URL prefix under which the documents are served.
func (c Config) DocsRoute() string {
	return "static/" + c.Company + "/docs"
}

// LoadCompany reads and validates <ConfigDir>/<company>/config.json.
func (c Config) LoadCompany() (Company, error) {
	data, err := os.ReadFile(c.CompanyFile())
	if err != nil {
		return Company{}, fmt.Errorf("read company config: %w", err)
	}
	return ParseCompany(data)
}

// ParseCompany decodes a company config document.
func ParseCompany(data []byte) (Company, error) {
	if !gjson.ValidBytes(data) {
		return Company{}, fmt.Errorf("company config is not valid JSON")
	}

	parsed := gjson.ParseBytes(data)

	company := Company{
		Domain: parsed.Get("domain").String(),
	}
	if company.Domain == "" {
		company.Domain = "domain_not_found"
	}

	for _, b := range parsed.Get("buckets").Array() {
		company.Buckets = append(company.Buckets, Bucket{
			ID:   b.Get("bucket_id").String(),
			Name: b.Get("name").String(),
		})
	}

	for _, kw := range parsed.Get("keywords").Array() {
		if kw.String() != "" {
			company.Keywords = append(company.Keywords, kw.String())
		}
	}

	return company, nil
}

// SelectBucket picks the bucket used for content searches. With a single
// configured bucket that one wins; with several the first is the default until
// smarter routing exists.
func (co Company) SelectBucket() (Bucket, error) {
	if len(co.Buckets) == 0 {
		return Bucket{}, fmt.Errorf("no buckets defined in company config")
	}

	chosen := co.Buckets[0]
	if _, err := strconv.Atoi(chosen.ID); err != nil {
		return Bucket{}, fmt.Errorf("bucket_id must be a valid integer, got %q", chosen.ID)
	}
	return chosen, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
