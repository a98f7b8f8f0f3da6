package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/John-Robertt/movienotes/internal/domain"
	"github.com/John-Robertt/movienotes/internal/infra/httpx"
	"github.com/John-Robertt/movienotes/internal/infra/logx"
	"github.com/John-Robertt/movienotes/internal/input"
	"github.com/John-Robertt/movienotes/internal/normalize"
)

const (
	// ErrCodeNotFound 表示未给出 input 且 cwd 下没有 movienotes.yaml。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
	// ErrCodeMissingInput 表示未给出 input 且配置文件也缺少 input 字段。
	ErrCodeMissingInput = domain.ErrCodeConfigMissingInput
)

// FileName 是配置文件名（YAML）。
const FileName = "movienotes.yaml"

const (
	DefaultProvider       = "imdb"
	DefaultOutDir         = "out"
	DefaultMatchWarnBelow = 0.6
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	Input string

	Provider    string
	ProviderSet bool

	Out    string
	OutSet bool

	Apply    bool
	ApplySet bool

	Pages    bool
	PagesSet bool

	LinkTitles    bool
	LinkTitlesSet bool
}

// FileConfig 对应 movienotes.yaml；带 env 标签的字段可被环境变量覆盖（env > file）。
type FileConfig struct {
	Input       string `yaml:"input" env:"MOVIENOTES_INPUT"`
	TitleColumn string `yaml:"title_column" env:"MOVIENOTES_TITLE_COLUMN"`
	Out         string `yaml:"out" env:"MOVIENOTES_OUT"`
	Provider    string `yaml:"provider" env:"MOVIENOTES_PROVIDER"`

	Apply      *bool `yaml:"apply"`
	Pages      *bool `yaml:"pages"`
	LinkTitles *bool `yaml:"link_titles"`

	OMDbAPIKey  string `yaml:"omdb_api_key" env:"OMDB_API_KEY"`
	IMDbBaseURL string `yaml:"imdb_base_url" env:"MOVIENOTES_IMDB_BASE_URL"`
	OMDbBaseURL string `yaml:"omdb_base_url" env:"MOVIENOTES_OMDB_BASE_URL"`

	Proxy ProxyConfig `yaml:"proxy"`

	HTTPTimeout    time.Duration `yaml:"http_timeout" env:"MOVIENOTES_HTTP_TIMEOUT"`
	RetryMax       *int          `yaml:"retry_max"`
	MatchWarnBelow *float64      `yaml:"match_warn_below"`
	LogLevel       string        `yaml:"log_level" env:"MOVIENOTES_LOG_LEVEL"`

	Defaults DefaultsConfig `yaml:"defaults"`
}

type ProxyConfig struct {
	URL string `yaml:"url" env:"MOVIENOTES_PROXY_URL"`
}

// DefaultsConfig 是默认值表的覆盖项；键必须是字段名（见 domain.Fields）。
type DefaultsConfig struct {
	NotFound     map[string]any `yaml:"not_found"`
	FieldMissing map[string]any `yaml:"field_missing"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Input       string
	TitleColumn string
	OutDir      string

	Provider   string
	Apply      bool
	Pages      bool
	LinkTitles bool

	OMDbAPIKey  string
	IMDbBaseURL string
	OMDbBaseURL string
	ProxyURL    string

	HTTPTimeout    time.Duration
	RetryMax       int
	MatchWarnBelow float64
	LogLevel       logx.Level

	Defaults normalize.Defaults

	// ConfigFile 是实际读取到的配置文件（不存在时为空）。
	ConfigFile string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q（也未在命令行指定输入文件）", e.Code, e.Path)
	case ErrCodeMissingInput:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 input", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 input：尝试读取 <input 所在目录>/movienotes.yaml（可选）
// 2) CLI 未提供 input：必须读取 <cwd>/movienotes.yaml（必选），且其中必须包含 input
//
// 覆盖优先级：CLI > 环境变量 > 配置文件 > 内置默认。
// 相对路径：CLI 给出的相对 cwd；配置文件给出的相对配置文件所在目录。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Input) != "" {
		inputAbs := absCleanFrom(cwdAbs, cli.Input)
		cfgPath := filepath.Join(filepath.Dir(inputAbs), FileName)

		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			cfgPath = ""
		}
		return merge(cwdAbs, inputAbs, cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Input) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingInput, Path: cfgPath}
	}

	inputAbs := absCleanFrom(cwdAbs, fc.Input)
	return merge(cwdAbs, inputAbs, cli, fc, cfgPath)
}

func merge(cwdAbs, inputAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		p := cfgPath
		if p == "" {
			p = "<cli/env>"
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: p, Err: err}
	}

	cfgDir := cwdAbs
	if cfgPath != "" {
		cfgDir = filepath.Dir(cfgPath)
	}

	// provider：CLI > env/config > 默认
	provider := DefaultProvider
	if cli.ProviderSet {
		provider = cli.Provider
	} else if strings.TrimSpace(fc.Provider) != "" {
		provider = fc.Provider
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if err := validateProvider(provider); err != nil {
		return invalid(err)
	}

	omdbKey := strings.TrimSpace(fc.OMDbAPIKey)
	if provider == "omdb" && omdbKey == "" {
		return invalid(errors.New("provider=omdb 需要 omdb_api_key（或环境变量 OMDB_API_KEY）"))
	}

	outDir := filepath.Join(filepath.Dir(inputAbs), DefaultOutDir)
	if cli.OutSet && strings.TrimSpace(cli.Out) != "" {
		outDir = absCleanFrom(cwdAbs, cli.Out)
	} else if strings.TrimSpace(fc.Out) != "" {
		outDir = absCleanFrom(cfgDir, fc.Out)
	}

	apply := pickBool(cli.ApplySet, cli.Apply, fc.Apply, false)
	pages := pickBool(cli.PagesSet, cli.Pages, fc.Pages, true)
	linkTitles := pickBool(cli.LinkTitlesSet, cli.LinkTitles, fc.LinkTitles, false)

	proxyURL := strings.TrimSpace(fc.Proxy.URL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid(fmt.Errorf("proxy.url 无效：%q", proxyURL))
		}
	}

	imdbBase, err := validateBaseURL("imdb_base_url", fc.IMDbBaseURL)
	if err != nil {
		return invalid(err)
	}
	omdbBase, err := validateBaseURL("omdb_base_url", fc.OMDbBaseURL)
	if err != nil {
		return invalid(err)
	}

	timeout := fc.HTTPTimeout
	if timeout < 0 {
		return invalid(fmt.Errorf("http_timeout 不能为负数：%v", timeout))
	}
	if timeout == 0 {
		timeout = httpx.DefaultTimeout
	}

	retryMax := httpx.DefaultRetryMax
	if fc.RetryMax != nil {
		retryMax = *fc.RetryMax
	}
	if retryMax < 0 || retryMax > 5 {
		return invalid(fmt.Errorf("retry_max 必须在 [0, 5] 之间，实际是 %d", retryMax))
	}

	warnBelow := DefaultMatchWarnBelow
	if fc.MatchWarnBelow != nil {
		warnBelow = *fc.MatchWarnBelow
	}
	if warnBelow < 0 || warnBelow > 1 {
		return invalid(fmt.Errorf("match_warn_below 必须在 [0, 1] 之间，实际是 %v", warnBelow))
	}

	level, ok := logx.ParseLevel(fc.LogLevel)
	if !ok {
		return invalid(fmt.Errorf("log_level 无效：%q", fc.LogLevel))
	}

	defaults, err := decodeDefaults(fc.Defaults)
	if err != nil {
		return invalid(err)
	}

	titleColumn := strings.TrimSpace(fc.TitleColumn)
	if titleColumn == "" {
		titleColumn = input.DefaultColumn
	}

	return EffectiveConfig{
		Input:          inputAbs,
		TitleColumn:    titleColumn,
		OutDir:         outDir,
		Provider:       provider,
		Apply:          apply,
		Pages:          pages,
		LinkTitles:     linkTitles,
		OMDbAPIKey:     omdbKey,
		IMDbBaseURL:    imdbBase,
		OMDbBaseURL:    omdbBase,
		ProxyURL:       proxyURL,
		HTTPTimeout:    timeout,
		RetryMax:       retryMax,
		MatchWarnBelow: warnBelow,
		LogLevel:       level,
		Defaults:       defaults,
		ConfigFile:     cfgPath,
	}, nil
}

func pickBool(cliSet, cliVal bool, file *bool, def bool) bool {
	if cliSet {
		return cliVal
	}
	if file != nil {
		return *file
	}
	return def
}

func validateProvider(p string) error {
	switch p {
	case "imdb", "omdb":
		return nil
	case "":
		return fmt.Errorf("provider 不能为空")
	default:
		return fmt.Errorf("provider 只能是 imdb 或 omdb，实际是 %q", p)
	}
}

func validateBaseURL(key, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%s 无效：%q", key, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%s 必须是 http/https：%q", key, raw)
	}
	return raw, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取 YAML 配置并叠加环境变量。
// 文件不存在不算错误：此时只读取环境变量（exists=false）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	fi, err := os.Stat(path)
	switch {
	case err == nil && fi.IsDir():
		return FileConfig{}, false, fmt.Errorf("%q 是目录", path)
	case err == nil:
		if err := cleanenv.ReadConfig(path, &fc); err != nil {
			return FileConfig{}, true, err
		}
		return fc, true, nil
	case os.IsNotExist(err):
		if err := cleanenv.ReadEnv(&fc); err != nil {
			return FileConfig{}, false, err
		}
		return fc, false, nil
	default:
		return FileConfig{}, false, err
	}
}
