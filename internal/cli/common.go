package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/xyproto/env/v2"

	"github.com/jinix-lang/jinix/internal/codegen"
	jerrors "github.com/jinix-lang/jinix/internal/errors"
)

// Version information for the jinix tool
const (
	Version   = "0.3.0"
	BuildDate = "2026-10-18"
)

// CommitSHA is set at link time with -ldflags "-X".
var CommitSHA = "unknown"

// VersionInfo contains version and build information
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	CommitSHA string `json:"commit_sha"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Arch      string `json:"arch"`
}

// GetVersionInfo returns structured version information
func GetVersionInfo() *VersionInfo {
	return &VersionInfo{
		Version:   Version,
		BuildDate: BuildDate,
		CommitSHA: CommitSHA,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// PrintVersion writes version information as text or JSON.
func PrintVersion(w io.Writer, toolName string, jsonOutput bool) {
	info := GetVersionInfo()

	if jsonOutput {
		data, err := json.MarshalIndent(map[string]interface{}{
			"tool":         toolName,
			"version_info": info,
		}, "", "  ")
		if err == nil {
			fmt.Fprintln(w, string(data))
			return
		}
		fmt.Fprintf(os.Stderr, "Error: Failed to marshal version info to JSON: %v\n", err)
	}

	fmt.Fprintf(w, "%s v%s\n", toolName, info.Version)
	fmt.Fprintf(w, "Build Date: %s\n", info.BuildDate)
	if info.CommitSHA != "unknown" && info.CommitSHA != "" {
		fmt.Fprintf(w, "Commit: %s\n", info.CommitSHA)
	}
	fmt.Fprintf(w, "Go Version: %s\n", info.GoVersion)
	fmt.Fprintf(w, "Platform: %s/%s\n", info.Platform, info.Arch)
}

// ExitWithError prints an error message and exits with code 1
func ExitWithError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// Logger is the leveled logger shared by the jinix commands. Info output
// needs Verbose, debug output needs DebugMode; warnings and errors always
// print.
type Logger struct {
	Verbose   bool
	DebugMode bool

	log *logrus.Logger
}

// NewLogger creates a logger writing to stderr.
func NewLogger(verbose, debug bool) *Logger {
	return NewLoggerTo(os.Stderr, verbose, debug)
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(w io.Writer, verbose, debug bool) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05", DisableColors: true})
	switch {
	case debug:
		l.SetLevel(logrus.DebugLevel)
	case verbose:
		l.SetLevel(logrus.InfoLevel)
	default:
		l.SetLevel(logrus.WarnLevel)
	}
	return &Logger{Verbose: verbose || debug, DebugMode: debug, log: l}
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) { l.log.Infof(format, args...) }

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.log.Debugf(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.log.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.log.Errorf(format, args...) }

// WithFields returns an entry carrying structured fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.log.WithFields(logrus.Fields(fields))
}

// Config is the jinix configuration. Values come from the JSON config
// file, then JINIX_* environment variables, then command-line flags.
type Config struct {
	Verbose  bool   `json:"verbose"`
	Debug    bool   `json:"debug"`
	WorkDir  string `json:"work_dir"`
	OutDir   string `json:"out_dir"`
	Report   string `json:"report"`
	Policy   string `json:"policy"`
	Workers  int    `json:"workers"`
	Compiler string `json:"compiler"`
	JavaHome string `json:"java_home"`
	CacheDir string `json:"cache_dir,omitempty"`
	Library  string `json:"library"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		WorkDir:  ".",
		OutDir:   ".jinix",
		Report:   "jinix-report.json",
		Policy:   string(codegen.PolicyInline),
		Compiler: "g++",
		JavaHome: os.Getenv("JAVA_HOME"),
		Library:  "jinix",
	}
}

// LoadConfig loads configuration from file over the defaults and applies
// the environment. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, jerrors.Invalid("failed to parse config file %s: %v", configPath, err)
			}
		}
	}

	config.ApplyEnv()
	return config, nil
}

// ApplyEnv overrides fields from JINIX_* environment variables.
func (c *Config) ApplyEnv() {
	if env.Has("JINIX_VERBOSE") {
		c.Verbose = env.Bool("JINIX_VERBOSE")
	}
	if env.Has("JINIX_DEBUG") {
		c.Debug = env.Bool("JINIX_DEBUG")
	}
	c.WorkDir = env.Str("JINIX_WORK_DIR", c.WorkDir)
	c.OutDir = env.Str("JINIX_OUT_DIR", c.OutDir)
	c.Report = env.Str("JINIX_REPORT", c.Report)
	c.Policy = env.Str("JINIX_POLICY", c.Policy)
	c.Workers = env.Int("JINIX_WORKERS", c.Workers)
	c.Compiler = env.Str("JINIX_COMPILER", c.Compiler)
	c.JavaHome = env.Str("JINIX_JAVA_HOME", c.JavaHome)
	c.CacheDir = env.Str("JINIX_CACHE_DIR", c.CacheDir)
	c.Library = env.Str("JINIX_LIBRARY", c.Library)
}

// Validate checks the values that have a closed domain.
func (c *Config) Validate() error {
	if _, err := codegen.ParsePolicy(c.Policy); err != nil {
		return err
	}
	if c.Workers < 0 {
		return jerrors.Invalid("workers must not be negative, got %d", c.Workers)
	}
	if c.OutDir == "" {
		return jerrors.Invalid("out_dir must not be empty")
	}
	if c.Library == "" {
		return jerrors.Invalid("library must not be empty")
	}
	return nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// InitConfig writes c to configPath. An existing file is kept unless
// overwrite is set.
func (c *Config) InitConfig(configPath string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(configPath); err == nil {
			return jerrors.Invalid("%s already exists (use --force to overwrite)", configPath)
		}
	}
	return c.SaveConfig(configPath)
}

// CommandInfo represents information about a CLI command
type CommandInfo struct {
	Name        string
	Usage       string
	Description string
	Examples    []string
	Flags       []FlagInfo
}

// FlagInfo represents information about a command flag
type FlagInfo struct {
	Name    string
	Usage   string
	Default string
}

// PrintUsage prints a standardized usage message
func PrintUsage(w io.Writer, tool string, commands []CommandInfo) {
	fmt.Fprintf(w, "%s - nativize hot Java methods through JNI\n\n", tool)
	fmt.Fprintf(w, "USAGE:\n")
	fmt.Fprintf(w, "    %s <command> [OPTIONS]\n\n", tool)

	if len(commands) > 0 {
		fmt.Fprintf(w, "COMMANDS:\n")
		for _, cmd := range commands {
			fmt.Fprintf(w, "    %-12s %s\n", cmd.Name, cmd.Description)
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "GLOBAL OPTIONS:\n")
	fmt.Fprintf(w, "    --help, -h     Show help information\n")
	fmt.Fprintf(w, "    --version, -v  Show version information\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Use '%s help <command>' for more information about a command.\n", tool)
}

// PrintCommandUsage prints usage for a specific command
func PrintCommandUsage(w io.Writer, tool string, cmd CommandInfo) {
	fmt.Fprintf(w, "%s %s - %s\n\n", tool, cmd.Name, cmd.Description)
	fmt.Fprintf(w, "USAGE:\n")
	fmt.Fprintf(w, "    %s\n\n", cmd.Usage)

	if len(cmd.Flags) > 0 {
		fmt.Fprintf(w, "OPTIONS:\n")
		for _, flag := range cmd.Flags {
			fmt.Fprintf(w, "%-20s %s\n", "    --"+flag.Name, flag.Usage)
			if flag.Default != "" {
				fmt.Fprintf(w, "%-20s Default: %s\n", "", flag.Default)
			}
		}
		fmt.Fprintf(w, "\n")
	}

	if len(cmd.Examples) > 0 {
		fmt.Fprintf(w, "EXAMPLES:\n")
		for _, example := range cmd.Examples {
			fmt.Fprintf(w, "    %s\n", example)
		}
		fmt.Fprintf(w, "\n")
	}
}

// ValidateArgs validates command line arguments
func ValidateArgs(args []string, minArgs int, usage string) error {
	if len(args) < minArgs {
		return jerrors.Invalid("insufficient arguments\nUsage: %s", usage)
	}
	return nil
}

// HandleError logs err and exits with status 1.
func HandleError(err error, logger *Logger) {
	if err != nil {
		if logger != nil {
			logger.Error("%v", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
