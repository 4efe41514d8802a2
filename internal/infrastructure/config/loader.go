package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = ".covstatus.yaml"

type Loader struct{}

type fileConfig struct {
	Thresholds  fileThresholds  `yaml:"thresholds"`
	Aggregation fileAggregation `yaml:"aggregation"`
	Jacoco      fileJacoco      `yaml:"jacoco"`
	Reports     fileReports     `yaml:"reports"`
	Reference   fileReference   `yaml:"reference"`
	Comment     fileComment     `yaml:"comment"`
}

type fileThresholds struct {
	Yellow                int  `yaml:"yellow"`
	Green                 int  `yaml:"green"`
	NegativeCoverageIsRed bool `yaml:"negativeCoverageIsRed"`
}

type fileAggregation struct {
	UseAggregates bool `yaml:"useAggregates"`
}

type fileJacoco struct {
	Counter string `yaml:"counter"`
}

type fileReports struct {
	DisableSimpleCov bool     `yaml:"disableSimpleCov"`
	Patterns         []string `yaml:"patterns,omitempty"`
	OnError          string   `yaml:"onError"`
}

type fileReference struct {
	Store string    `yaml:"store"`
	Label string    `yaml:"label,omitempty"`
	Sonar fileSonar `yaml:"sonar,omitempty"`
}

// Secrets may reference environment variables, e.g. token: ${SONAR_TOKEN}.
type fileSonar struct {
	URL      string `yaml:"url,omitempty"`
	Token    string `yaml:"token,omitempty"`
	Login    string `yaml:"login,omitempty"`
	Password string `yaml:"password,omitempty"`
}

type fileComment struct {
	Mode       string `yaml:"mode"`
	BaseURL    string `yaml:"baseURL,omitempty"`
	PlainGreen bool   `yaml:"plainGreen"`
	Provider   string `yaml:"provider"`
}

func (l Loader) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Load reads path on top of the defaults; keys absent from the file keep
// their default value.
func (l Loader) Load(path string) (application.Config, error) {
	raw, err := os.ReadFile(path) // #nosec G304 - user-chosen config path
	if err != nil {
		return application.Config{}, err
	}
	return Parse(raw)
}

// Parse decodes YAML content on top of the defaults and validates it.
func Parse(raw []byte) (application.Config, error) {
	cfg := toFile(application.DefaultConfig())
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return application.Config{}, fmt.Errorf("parse config: %w", err)
	}
	return fromFile(cfg)
}

func fromFile(cfg fileConfig) (application.Config, error) {
	thresholds := domain.ThresholdConfig{
		Yellow:                cfg.Thresholds.Yellow,
		Green:                 cfg.Thresholds.Green,
		NegativeCoverageIsRed: cfg.Thresholds.NegativeCoverageIsRed,
	}
	if err := thresholds.Validate(); err != nil {
		return application.Config{}, fmt.Errorf("thresholds: %w", err)
	}

	if _, err := domain.JacocoFormat(cfg.Jacoco.Counter); err != nil {
		return application.Config{}, err
	}

	onError := application.ErrorPolicy(cfg.Reports.OnError)
	switch onError {
	case application.ErrorPolicyFail, application.ErrorPolicySkip:
	case "":
		onError = application.ErrorPolicyFail
	default:
		return application.Config{}, fmt.Errorf("reports.onError must be %q or %q, got %q",
			application.ErrorPolicyFail, application.ErrorPolicySkip, cfg.Reports.OnError)
	}

	mode := domain.CommentMode(cfg.Comment.Mode)
	switch mode {
	case domain.CommentShields, domain.CommentLocal:
	case "":
		mode = domain.CommentShields
	default:
		return application.Config{}, fmt.Errorf("comment.mode must be %q or %q, got %q",
			domain.CommentShields, domain.CommentLocal, cfg.Comment.Mode)
	}

	provider := application.PRProvider(cfg.Comment.Provider)
	switch provider {
	case application.ProviderGitHub, application.ProviderBitbucket, application.ProviderGitLab, application.ProviderAuto:
	case "":
		provider = application.ProviderAuto
	default:
		return application.Config{}, fmt.Errorf("unsupported comment.provider %q", cfg.Comment.Provider)
	}

	return application.Config{
		Thresholds:  thresholds,
		Aggregation: application.AggregationConfig{UseAggregates: cfg.Aggregation.UseAggregates},
		Jacoco:      application.JacocoConfig{Counter: cfg.Jacoco.Counter},
		Reports: application.ReportsConfig{
			DisableSimpleCov: cfg.Reports.DisableSimpleCov,
			Patterns:         cfg.Reports.Patterns,
			OnError:          onError,
		},
		Reference: application.ReferenceConfig{
			Store: cfg.Reference.Store,
			Label: cfg.Reference.Label,
			Sonar: application.SonarConfig{
				URL:      cfg.Reference.Sonar.URL,
				Token:    os.ExpandEnv(cfg.Reference.Sonar.Token),
				Login:    os.ExpandEnv(cfg.Reference.Sonar.Login),
				Password: os.ExpandEnv(cfg.Reference.Sonar.Password),
			},
		},
		Comment: application.CommentConfig{
			Mode:       mode,
			BaseURL:    cfg.Comment.BaseURL,
			PlainGreen: cfg.Comment.PlainGreen,
			Provider:   provider,
		},
	}, nil
}

func toFile(cfg application.Config) fileConfig {
	return fileConfig{
		Thresholds: fileThresholds{
			Yellow:                cfg.Thresholds.Yellow,
			Green:                 cfg.Thresholds.Green,
			NegativeCoverageIsRed: cfg.Thresholds.NegativeCoverageIsRed,
		},
		Aggregation: fileAggregation{UseAggregates: cfg.Aggregation.UseAggregates},
		Jacoco:      fileJacoco{Counter: cfg.Jacoco.Counter},
		Reports: fileReports{
			DisableSimpleCov: cfg.Reports.DisableSimpleCov,
			Patterns:         cfg.Reports.Patterns,
			OnError:          string(cfg.Reports.OnError),
		},
		Reference: fileReference{
			Store: cfg.Reference.Store,
			Label: cfg.Reference.Label,
			Sonar: fileSonar{
				URL:      cfg.Reference.Sonar.URL,
				Token:    cfg.Reference.Sonar.Token,
				Login:    cfg.Reference.Sonar.Login,
				Password: cfg.Reference.Sonar.Password,
			},
		},
		Comment: fileComment{
			Mode:       string(cfg.Comment.Mode),
			BaseURL:    cfg.Comment.BaseURL,
			PlainGreen: cfg.Comment.PlainGreen,
			Provider:   string(cfg.Comment.Provider),
		},
	}
}

// Write emits cfg in the file schema read by Load.
func Write(w io.Writer, cfg application.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toFile(cfg)); err != nil {
		return err
	}
	return enc.Close()
}
