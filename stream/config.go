package stream

import (
	"fmt"
	"os"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v2"

	"github.com/matt-g-everett/ugoiratx/apng"
	"github.com/matt-g-everett/ugoiratx/ugoira"
)

type Config struct {
	Mqtt struct {
		URL      string `yaml:"url"`
		ClientID string `yaml:"clientId"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Qos      byte   `yaml:"qos"`
		Topics   struct {
			Jobs     string `yaml:"jobs"`
			Progress string `yaml:"progress"`
			Results  string `yaml:"results"`
		} `yaml:"topics"`
	} `yaml:"mqtt"`
	Fetch struct {
		Referer   string        `yaml:"referer"`
		UserAgent string        `yaml:"userAgent"`
		Timeout   time.Duration `yaml:"timeout"`
		MaxBytes  int64         `yaml:"maxBytes"`
	} `yaml:"fetch"`
	Output struct {
		Dir     string `yaml:"dir"`
		BaseURL string `yaml:"baseUrl"`
		Listen  string `yaml:"listen"`
	} `yaml:"output"`
	Encoder struct {
		Compression string `yaml:"compression"`
		Plays       uint32 `yaml:"plays"`
		Matte       string `yaml:"matte"`
	} `yaml:"encoder"`
	QueueSize int `yaml:"queueSize"`
}

// ReadConfig decodes a YAML config file and fills in defaults.
func ReadConfig(path string) (Config, error) {
	var c Config
	f, err := os.Open(path)
	if err != nil {
		return c, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&c); err != nil {
		return c, fmt.Errorf("decode %s: %w", path, err)
	}
	c.SetDefaults()
	return c, nil
}

// SetDefaults fills every empty field that has a sensible default.
func (c *Config) SetDefaults() {
	if c.Mqtt.ClientID == "" {
		c.Mqtt.ClientID = "ugoiratx"
	}
	if c.Mqtt.Topics.Jobs == "" {
		c.Mqtt.Topics.Jobs = "ugoira/jobs"
	}
	if c.Mqtt.Topics.Progress == "" {
		c.Mqtt.Topics.Progress = "ugoira/progress"
	}
	if c.Mqtt.Topics.Results == "" {
		c.Mqtt.Topics.Results = "ugoira/results"
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 2 * time.Minute
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "artifacts"
	}
	if c.Output.Listen == "" {
		c.Output.Listen = ":3000"
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
}

// EncoderOptions turns the encoder section into options for the pipeline.
func (c *Config) EncoderOptions() (ugoira.EncoderOptions, error) {
	var opts ugoira.EncoderOptions
	level, err := apng.ParseCompressionLevel(c.Encoder.Compression)
	if err != nil {
		return opts, err
	}
	opts.Compression = level
	opts.Plays = c.Encoder.Plays

	if c.Encoder.Matte != "" {
		matte, err := colorful.Hex(c.Encoder.Matte)
		if err != nil {
			return opts, fmt.Errorf("encoder matte %q: %w", c.Encoder.Matte, err)
		}
		opts.Matte = &matte
	}
	return opts, nil
}
