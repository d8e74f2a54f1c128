package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete DocsMCP configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	DataDir string        `yaml:"data_dir" json:"data_dir"`
	Sources SourcesConfig `yaml:"sources" json:"sources"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Limits  LimitsConfig  `yaml:"limits" json:"limits"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SourcesConfig configures the document sources to crawl.
type SourcesConfig struct {
	Local  LocalSourceConfig  `yaml:"local" json:"local"`
	GDrive GDriveSourceConfig `yaml:"gdrive" json:"gdrive"`
}

// LocalSourceConfig configures local filesystem crawling.
//
// Enabled-style fields are pointers so an explicit `false` in YAML survives
// merging; nil means "not set" and the accessor supplies the default.
type LocalSourceConfig struct {
	// Enabled enables the local source (default: true).
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	// Roots are the directories to crawl. Tilde is expanded at load time.
	Roots []string `yaml:"roots" json:"roots"`
	// Extensions is the allow-list of file extensions to index.
	Extensions []string `yaml:"extensions" json:"extensions"`
	// Exclude holds glob patterns that are skipped during crawls.
	Exclude []string `yaml:"exclude" json:"exclude"`
	// RespectGitignore honors .gitignore files found under the roots (default: true).
	RespectGitignore *bool `yaml:"respect_gitignore,omitempty" json:"respect_gitignore,omitempty"`
}

// IsEnabled reports whether the local source is enabled. Defaults to true.
func (l LocalSourceConfig) IsEnabled() bool {
	return l.Enabled == nil || *l.Enabled
}

// GitignoreEnabled reports whether .gitignore files are honored. Defaults to true.
func (l LocalSourceConfig) GitignoreEnabled() bool {
	return l.RespectGitignore == nil || *l.RespectGitignore
}

// GDriveSourceConfig configures the Google Drive source.
type GDriveSourceConfig struct {
	// Enabled enables Drive crawling (default: false, opt-in).
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	// CredentialsFile is the OAuth client credentials JSON.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	// TokenFile caches the OAuth token between runs.
	TokenFile string `yaml:"token_file" json:"token_file"`
	// Folders restricts crawling to these folder IDs (empty = entire Drive).
	Folders []string `yaml:"folders" json:"folders"`
}

// IsEnabled reports whether the Drive source is enabled. Defaults to false.
func (g GDriveSourceConfig) IsEnabled() bool {
	return g.Enabled != nil && *g.Enabled
}

// WatchConfig configures live file watching.
type WatchConfig struct {
	// Enabled starts the watcher alongside the MCP server (default: true).
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	// Debounce is the quiet period before a changed file is re-indexed.
	Debounce string `yaml:"debounce" json:"debounce"`
	// PollInterval is the fallback polling cadence for filesystems
	// where native events are unreliable (network mounts).
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
	// QueueSize bounds the pending event queue.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// IsEnabled reports whether watching is enabled. Defaults to true.
func (w WatchConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// SearchConfig configures search result shaping.
type SearchConfig struct {
	// DefaultLimit is the result count when the caller does not specify one.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	// MaxLimit caps the result count a caller may request.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`
	// PreviewLength is the content preview length in characters.
	PreviewLength int `yaml:"preview_length" json:"preview_length"`
}

// LimitsConfig configures extraction and storage limits.
type LimitsConfig struct {
	// MaxFileSizeMB skips files larger than this during crawls.
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	// MaxContentChars truncates extracted content beyond this length.
	MaxContentChars int `yaml:"max_content_chars" json:"max_content_chars"`
	// ExtractWorkers is the extraction pool size (default: NumCPU).
	ExtractWorkers int `yaml:"extract_workers" json:"extract_workers"`
	// SQLiteCacheMB is the SQLite page cache size in MB.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// DefaultExtensions is the document extension allow-list applied when the
// config does not specify one. Files with other extensions are ignored by
// the crawler; explicitly configured extensions are extracted as plain text
// when no dedicated extractor exists.
var DefaultExtensions = []string{".txt", ".md", ".markdown", ".pdf", ".docx", ".pptx"}

// defaultExcludePatterns are always excluded. Office suites drop lock and
// temp files next to the document being edited; indexing those produces
// garbage hits.
var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/~$*",
	"**/.~lock.*",
	"**/.Trash/**",
	"**/.DS_Store",
	"**/Thumbs.db",
}

// NewConfig builds the built-in default configuration.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: DefaultDataDir(),
		Sources: SourcesConfig{
			Local: LocalSourceConfig{
				Roots:      []string{},
				Extensions: append([]string{}, DefaultExtensions...),
				Exclude:    append([]string{}, defaultExcludePatterns...),
			},
			// GDrive stays disabled until credentials are configured
			GDrive: GDriveSourceConfig{},
		},
		Watch: WatchConfig{
			Debounce:     "500ms",
			PollInterval: "30s",
			QueueSize:    1024,
		},
		Search: SearchConfig{
			DefaultLimit:  20,
			MaxLimit:      100,
			PreviewLength: 200,
		},
		Limits: LimitsConfig{
			MaxFileSizeMB:   50,
			MaxContentChars: 100000,
			ExtractWorkers:  runtime.NumCPU(),
			SQLiteCacheMB:   64,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      "", // Empty means <data_dir>/logs/docsmcp.log
			MaxSizeMB: 10,
			MaxFiles:  3,
		},
	}
}

// DefaultDataDir returns the default data directory (~/.docsmcp).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docsmcp")
	}
	return filepath.Join(home, ".docsmcp")
}

// IndexPath returns the SQLite index file inside the data directory.
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, "index.db")
}

// LockPath returns the cross-process crawl lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "index.lock")
}

// StatusPath returns the background crawl status file.
func (c *Config) StatusPath() string {
	return filepath.Join(c.DataDir, "status.json")
}

// LogPath returns the configured log file, defaulting to the data directory.
func (c *Config) LogPath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.DataDir, "logs", "docsmcp.log")
}

// DebounceDuration parses the watch debounce, falling back to 500ms.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// PollIntervalDuration parses the watch poll interval, falling back to 30s.
func (c *Config) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.PollInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// MaxFileSizeBytes returns the file size cap in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}

// GetUserConfigPath locates the user-level config file per the XDG Base
// Directory spec: $XDG_CONFIG_HOME/docsmcp/config.yaml when that variable
// is set, ~/.config/docsmcp/config.yaml otherwise.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docsmcp", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// No resolvable home; park the path under the temp dir
		return filepath.Join(os.TempDir(), ".config", "docsmcp", "config.yaml")
	}
	return filepath.Join(home, ".config", "docsmcp", "config.yaml")
}

// GetUserConfigDir is the directory holding the user config file.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user config file is on disk.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig reads the user-level file when present. Absence is not
// an error; the caller gets a nil config.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load resolves the effective configuration for a working directory.
// Four layers, each overriding the ones below: DOCSMCP_* environment
// variables, the project's .docsmcp.yaml, the user config, and the
// built-in defaults.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	// User config first, then the project file on top of it
	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}
	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	// Environment wins over both files
	cfg.applyEnvOverrides()

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile layers the project config over c. Both spellings are
// accepted, .yaml before .yml; a project without one keeps the lower
// layers.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".docsmcp.yaml", ".docsmcp.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML reads one config file and layers its set fields over c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// override replaces *dst when src carries a value.
func override[T comparable](dst *T, src T) {
	var zero T
	if src != zero {
		*dst = src
	}
}

// overrideSlice replaces *dst when src has elements.
func overrideSlice[T any](dst *[]T, src []T) {
	if len(src) > 0 {
		*dst = src
	}
}

// overridePtr replaces *dst when src was explicitly set.
func overridePtr[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// mergeWith layers the set fields of other over c. Slices replace
// wholesale, except Exclude, which stacks on the built-in patterns.
func (c *Config) mergeWith(other *Config) {
	override(&c.Version, other.Version)
	override(&c.DataDir, other.DataDir)

	overridePtr(&c.Sources.Local.Enabled, other.Sources.Local.Enabled)
	overrideSlice(&c.Sources.Local.Roots, other.Sources.Local.Roots)
	overrideSlice(&c.Sources.Local.Extensions, other.Sources.Local.Extensions)
	if len(other.Sources.Local.Exclude) > 0 {
		c.Sources.Local.Exclude = append(c.Sources.Local.Exclude, other.Sources.Local.Exclude...)
	}
	overridePtr(&c.Sources.Local.RespectGitignore, other.Sources.Local.RespectGitignore)

	overridePtr(&c.Sources.GDrive.Enabled, other.Sources.GDrive.Enabled)
	override(&c.Sources.GDrive.CredentialsFile, other.Sources.GDrive.CredentialsFile)
	override(&c.Sources.GDrive.TokenFile, other.Sources.GDrive.TokenFile)
	overrideSlice(&c.Sources.GDrive.Folders, other.Sources.GDrive.Folders)

	overridePtr(&c.Watch.Enabled, other.Watch.Enabled)
	override(&c.Watch.Debounce, other.Watch.Debounce)
	override(&c.Watch.PollInterval, other.Watch.PollInterval)
	override(&c.Watch.QueueSize, other.Watch.QueueSize)

	override(&c.Search.DefaultLimit, other.Search.DefaultLimit)
	override(&c.Search.MaxLimit, other.Search.MaxLimit)
	override(&c.Search.PreviewLength, other.Search.PreviewLength)

	override(&c.Limits.MaxFileSizeMB, other.Limits.MaxFileSizeMB)
	override(&c.Limits.MaxContentChars, other.Limits.MaxContentChars)
	override(&c.Limits.ExtractWorkers, other.Limits.ExtractWorkers)
	override(&c.Limits.SQLiteCacheMB, other.Limits.SQLiteCacheMB)

	override(&c.Logging.Level, other.Logging.Level)
	override(&c.Logging.File, other.Logging.File)
	override(&c.Logging.MaxSizeMB, other.Logging.MaxSizeMB)
	override(&c.Logging.MaxFiles, other.Logging.MaxFiles)
}

// envOverrides binds DOCSMCP_* variables to the fields they set.
var envOverrides = []struct {
	name  string
	apply func(*Config, string)
}{
	{"DOCSMCP_DATA_DIR", func(c *Config, v string) { c.DataDir = v }},
	// Roots use the platform path list separator, like PATH
	{"DOCSMCP_ROOTS", func(c *Config, v string) { c.Sources.Local.Roots = filepath.SplitList(v) }},
	{"DOCSMCP_WATCH_ENABLED", func(c *Config, v string) {
		enabled := strings.ToLower(v) == "true" || v == "1"
		c.Watch.Enabled = &enabled
	}},
	{"DOCSMCP_WATCH_DEBOUNCE", func(c *Config, v string) { c.Watch.Debounce = v }},
	{"DOCSMCP_POLL_INTERVAL", func(c *Config, v string) { c.Watch.PollInterval = v }},
	{"DOCSMCP_MAX_RESULTS", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.DefaultLimit = n
		}
	}},
	{"DOCSMCP_EXTRACT_WORKERS", func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Limits.ExtractWorkers = n
		}
	}},
	{"DOCSMCP_GDRIVE_CREDENTIALS", func(c *Config, v string) {
		c.Sources.GDrive.CredentialsFile = v
		enabled := true
		c.Sources.GDrive.Enabled = &enabled
	}},
	{"DOCSMCP_GDRIVE_TOKEN", func(c *Config, v string) { c.Sources.GDrive.TokenFile = v }},
	{"DOCSMCP_LOG_LEVEL", func(c *Config, v string) { c.Logging.Level = v }},
	{"DOCSMCP_LOG_FILE", func(c *Config, v string) { c.Logging.File = v }},
}

// applyEnvOverrides applies every set DOCSMCP_* variable.
func (c *Config) applyEnvOverrides() {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(c, v)
		}
	}
}

// normalize expands tildes in all path-valued fields.
func (c *Config) normalize() {
	c.DataDir = ExpandPath(c.DataDir)
	for i, root := range c.Sources.Local.Roots {
		c.Sources.Local.Roots[i] = ExpandPath(root)
	}
	c.Sources.GDrive.CredentialsFile = ExpandPath(c.Sources.GDrive.CredentialsFile)
	c.Sources.GDrive.TokenFile = ExpandPath(c.Sources.GDrive.TokenFile)
	c.Logging.File = ExpandPath(c.Logging.File)
}

// ExpandPath expands a leading tilde to the user home directory.
func ExpandPath(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	// ~user form is not supported; leave untouched
	return path
}

// Validate rejects configurations that cannot work: unparseable
// durations, impossible limits, a Drive source without credentials.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}

	for _, ext := range c.Sources.Local.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extensions must start with a dot, got %q", ext)
		}
	}

	if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
		return fmt.Errorf("watch.debounce is not a valid duration: %q", c.Watch.Debounce)
	}
	if _, err := time.ParseDuration(c.Watch.PollInterval); err != nil {
		return fmt.Errorf("watch.poll_interval is not a valid duration: %q", c.Watch.PollInterval)
	}
	if c.Watch.QueueSize < 0 {
		return fmt.Errorf("watch.queue_size must be non-negative, got %d", c.Watch.QueueSize)
	}

	positives := []struct {
		name  string
		value int
	}{
		{"search.default_limit", c.Search.DefaultLimit},
		{"search.preview_length", c.Search.PreviewLength},
		{"limits.max_file_size_mb", c.Limits.MaxFileSizeMB},
		{"limits.max_content_chars", c.Limits.MaxContentChars},
		{"limits.extract_workers", c.Limits.ExtractWorkers},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.max_limit (%d) must be >= search.default_limit (%d)",
			c.Search.MaxLimit, c.Search.DefaultLimit)
	}

	if c.Sources.GDrive.IsEnabled() && c.Sources.GDrive.CredentialsFile == "" {
		return fmt.Errorf("sources.gdrive.credentials_file is required when the gdrive source is enabled")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML marshals the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user-level configuration file. A missing
// file yields a nil config and no error.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// FindProjectRoot finds the directory a project config belongs to.
// It looks for a .git directory or .docsmcp.yaml/.yml file by walking up
// the directory tree, returning the start directory when neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	for dir := absDir; ; dir = filepath.Dir(dir) {
		if dirExists(filepath.Join(dir, ".git")) ||
			fileExists(filepath.Join(dir, ".docsmcp.yaml")) ||
			fileExists(filepath.Join(dir, ".docsmcp.yml")) {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			// Walked off the top without finding a marker
			return absDir, nil
		}
	}
}

// DiscoverDocRoots suggests crawl roots by probing for common documentation
// locations under dir and the user home. Used by `docsmcp init` to seed the
// roots list.
func DiscoverDocRoots(dir string) []string {
	candidates := []string{"docs", "doc", "documentation", "notes", "wiki"}

	var found []string
	for _, d := range candidates {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, filepath.Join(dir, d))
		}
	}

	// A repo with a README but no docs dir is still worth indexing at the top
	if len(found) == 0 {
		for _, f := range []string{"README.md", "readme.md"} {
			if fileExists(filepath.Join(dir, f)) {
				found = append(found, dir)
				break
			}
		}
	}

	return found
}

// fileExists reports whether path is an existing non-directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists reports whether path is an existing directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// fill sets *dst to def when it is still zero and records the dotted
// field name.
func fill[T comparable](added *[]string, dst *T, def T, name string) {
	var zero T
	if *dst == zero {
		*dst = def
		*added = append(*added, name)
	}
}

// MergeNewDefaults fills in fields an older release's config file never
// knew about, returning the dotted names it set. `docsmcp config
// upgrade` shows that list to the user.
func (c *Config) MergeNewDefaults() []string {
	defaults := NewConfig()
	var added []string

	fill(&added, &c.DataDir, defaults.DataDir, "data_dir")
	if len(c.Sources.Local.Extensions) == 0 {
		c.Sources.Local.Extensions = defaults.Sources.Local.Extensions
		added = append(added, "sources.local.extensions")
	}
	fill(&added, &c.Watch.Debounce, defaults.Watch.Debounce, "watch.debounce")
	fill(&added, &c.Watch.PollInterval, defaults.Watch.PollInterval, "watch.poll_interval")
	fill(&added, &c.Watch.QueueSize, defaults.Watch.QueueSize, "watch.queue_size")
	fill(&added, &c.Search.DefaultLimit, defaults.Search.DefaultLimit, "search.default_limit")
	fill(&added, &c.Search.MaxLimit, defaults.Search.MaxLimit, "search.max_limit")
	fill(&added, &c.Search.PreviewLength, defaults.Search.PreviewLength, "search.preview_length")
	fill(&added, &c.Limits.MaxContentChars, defaults.Limits.MaxContentChars, "limits.max_content_chars")
	fill(&added, &c.Limits.SQLiteCacheMB, defaults.Limits.SQLiteCacheMB, "limits.sqlite_cache_mb")

	return added
}
