package storage

import "time"

type Config struct {
	Database struct {
		Path string `yaml:"path" validate:"required"`
	} `yaml:"database"`

	Timezone string `yaml:"timezone"`

	Ollama struct {
		BaseURL string        `yaml:"base_url" validate:"required,url"`
		Model   string        `yaml:"model" validate:"required"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"ollama"`

	RateLimit struct {
		Capacity       int           `yaml:"capacity" validate:"min=1"`
		RefillTokens   int           `yaml:"refill_tokens" validate:"min=1"`
		RefillInterval time.Duration `yaml:"refill_interval" validate:"gt=0"`
		PollInterval   time.Duration `yaml:"poll_interval" validate:"gt=0"`
		MaxWait        time.Duration `yaml:"max_wait" validate:"gt=0"`
	} `yaml:"rate_limit"`

	Pools struct {
		News      int `yaml:"news" validate:"min=1"`
		Quiz      int `yaml:"quiz" validate:"min=1"`
		Events    int `yaml:"events" validate:"min=1"`
		QueueSize int `yaml:"queue_size" validate:"min=1"`
	} `yaml:"pools"`

	Keywords struct {
		OverusedDays      int      `yaml:"overused_days" validate:"min=1"`
		OverusedThreshold int      `yaml:"overused_threshold" validate:"min=1"`
		RecentDays        int      `yaml:"recent_days" validate:"min=1"`
		RetentionDays     int      `yaml:"retention_days" validate:"min=1"`
		Static            []string `yaml:"static"`
	} `yaml:"keywords"`

	Search struct {
		Provider      string        `yaml:"provider" validate:"oneof=naver feed"`
		NaverURL      string        `yaml:"naver_url"`
		ClientID      string        `yaml:"client_id"`
		ClientSecret  string        `yaml:"client_secret"`
		Display       int           `yaml:"display"`
		Sort          string        `yaml:"sort"`
		FeedURL       string        `yaml:"feed_url"`
		ContentDomain string        `yaml:"content_domain"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"search"`

	Crawl struct {
		Delay          time.Duration `yaml:"delay"`
		Timeout        time.Duration `yaml:"timeout"`
		Concurrency    int           `yaml:"concurrency" validate:"min=1"`
		UserAgent      string        `yaml:"user_agent"`
		BodySelector   string        `yaml:"body_selector"`
		ImageSelector  string        `yaml:"image_selector"`
		ImageAttr      string        `yaml:"image_attr"`
		AuthorSelector string        `yaml:"author_selector"`
		OutletSelector string        `yaml:"outlet_selector"`
		OutletAttr     string        `yaml:"outlet_attr"`
	} `yaml:"crawl"`

	Scoring struct {
		BatchSize int `yaml:"batch_size" validate:"min=1"`
		TopK      int `yaml:"top_k" validate:"min=1"`
	} `yaml:"scoring"`

	Synthetic struct {
		LengthTolerance int `yaml:"length_tolerance" validate:"min=0"`
	} `yaml:"synthetic"`

	Quiz struct {
		MaxAttempts int           `yaml:"max_attempts" validate:"min=1"`
		Backoff     time.Duration `yaml:"backoff"`
	} `yaml:"quiz"`

	Schedule struct {
		Pipeline       string `yaml:"pipeline"`
		Synthetic      string `yaml:"synthetic"`
		KeywordCleanup string `yaml:"keyword_cleanup"`
	} `yaml:"schedule"`

	Notify struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"notify"`

	Prompts struct {
		Keywords  string `yaml:"keywords,omitempty"`
		Analysis  string `yaml:"analysis,omitempty"`
		Synthetic string `yaml:"synthetic,omitempty"`
		Quiz      string `yaml:"quiz,omitempty"`
	} `yaml:"prompts,omitempty"`

	Temperatures struct {
		Keywords  float64 `yaml:"keywords"`
		Analysis  float64 `yaml:"analysis"`
		Synthetic float64 `yaml:"synthetic"`
		Quiz      float64 `yaml:"quiz"`
	} `yaml:"temperatures,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Database.Path = "./newsquiz.db"
	cfg.Timezone = "Asia/Seoul"
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.Model = "llama3"
	cfg.Ollama.Timeout = 2 * time.Minute

	// 12 calls up front, then one every 5 seconds
	cfg.RateLimit.Capacity = 12
	cfg.RateLimit.RefillTokens = 1
	cfg.RateLimit.RefillInterval = 5 * time.Second
	cfg.RateLimit.PollInterval = 2 * time.Second
	cfg.RateLimit.MaxWait = 60 * time.Second

	cfg.Pools.News = 2
	cfg.Pools.Quiz = 2
	cfg.Pools.Events = 1
	cfg.Pools.QueueSize = 100

	cfg.Keywords.OverusedDays = 5
	cfg.Keywords.OverusedThreshold = 3
	cfg.Keywords.RecentDays = 7
	cfg.Keywords.RetentionDays = 30
	cfg.Keywords.Static = []string{"속보", "긴급", "단독"}

	cfg.Search.Provider = "naver"
	cfg.Search.NaverURL = "https://openapi.naver.com/v1/search/news.json"
	cfg.Search.Display = 10
	cfg.Search.Sort = "sim"
	cfg.Search.FeedURL = "https://news.google.com/rss/search?q={keyword}&hl=ko&gl=KR&ceid=KR:ko"
	cfg.Search.ContentDomain = "n.news.naver.com"
	cfg.Search.Timeout = 10 * time.Second

	cfg.Crawl.Delay = time.Second
	cfg.Crawl.Timeout = 10 * time.Second
	cfg.Crawl.Concurrency = 2
	cfg.Crawl.UserAgent = "Mozilla/5.0 (compatible; newsquiz/1.0)"
	cfg.Crawl.BodySelector = "article#dic_area"
	cfg.Crawl.ImageSelector = "#img1"
	cfg.Crawl.ImageAttr = "data-src"
	cfg.Crawl.AuthorSelector = "em.media_end_head_journalist_name"
	cfg.Crawl.OutletSelector = "img.media_end_head_top_logo_img"
	cfg.Crawl.OutletAttr = "alt"

	// Batches of more than two long articles tend to come back truncated.
	cfg.Scoring.BatchSize = 2
	cfg.Scoring.TopK = 4

	cfg.Synthetic.LengthTolerance = 50

	cfg.Quiz.MaxAttempts = 5
	cfg.Quiz.Backoff = 60 * time.Second

	// robfig/cron specs include a seconds field
	cfg.Schedule.Pipeline = "0 0 6 * * *"
	cfg.Schedule.Synthetic = "0 30 6 * * *"
	cfg.Schedule.KeywordCleanup = "0 0 3 * * *"

	cfg.Temperatures.Keywords = 0.7
	cfg.Temperatures.Analysis = 0.3
	cfg.Temperatures.Synthetic = 0.8
	cfg.Temperatures.Quiz = 0.5
	return cfg
}

// Location resolves the configured timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
