// Command aidefense exercises the AI Defense SDK from the terminal: chat and
// HTTP inspection against the runtime API, and model scanning against the
// management API.
//
// Keys are read from the environment (a .env file is honored):
//
//	AIDEFENSE_API_KEY            runtime inspection key
//	AIDEFENSE_MANAGEMENT_API_KEY management key for scan commands
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	aidefense "github.com/cisco-ai-defense/gosdk"
	"github.com/cisco-ai-defense/gosdk/modelscan"
)

// settings is the optional YAML configuration file accepted via --config.
type settings struct {
	Region   string        `yaml:"region"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	LogLevel string        `yaml:"log_level"`
	Retry    struct {
		MaxRetries      uint64        `yaml:"max_retries"`
		InitialInterval time.Duration `yaml:"initial_interval"`
		MaxInterval     time.Duration `yaml:"max_interval"`
		RetryOnPost     bool          `yaml:"retry_on_post"`
	} `yaml:"retry"`
}

var (
	configPath string
	logLevel   string
	timeout    time.Duration

	cfg settings
)

func loadSettings() error {
	// Missing .env is fine; explicit --config that cannot be read is not.
	_ = godotenv.Load()

	if configPath == "" {
		return nil
	}
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("read config %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", configPath, err)
	}
	return nil
}

// inspectionOptions assembles the client options common to both inspection
// surfaces, from the environment, the settings file, and the flags.
func inspectionOptions() []aidefense.Option {
	opts := []aidefense.Option{aidefense.FromEnv()}
	if cfg.Region != "" {
		opts = append(opts, aidefense.WithRegion(aidefense.Region(cfg.Region)))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, aidefense.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, aidefense.WithTimeout(cfg.Timeout))
	}
	if timeout > 0 {
		opts = append(opts, aidefense.WithTimeout(timeout))
	}
	if cfg.Retry.MaxRetries > 0 {
		rc := aidefense.DefaultRetryConfig()
		rc.MaxRetries = cfg.Retry.MaxRetries
		if cfg.Retry.InitialInterval > 0 {
			rc.InitialInterval = cfg.Retry.InitialInterval
		}
		if cfg.Retry.MaxInterval > 0 {
			rc.MaxInterval = cfg.Retry.MaxInterval
		}
		opts = append(opts, aidefense.WithRetryConfig(rc))
	}
	if cfg.Retry.RetryOnPost {
		opts = append(opts, aidefense.WithRetryOnPost())
	}
	if logLevel != "" {
		opts = append(opts, aidefense.WithLogLevel(logLevel))
	} else if cfg.LogLevel != "" {
		opts = append(opts, aidefense.WithLogLevel(cfg.LogLevel))
	}
	return opts
}

func printResult(result *aidefense.InspectResult) {
	if result.IsSafe {
		fmt.Println("verdict: safe")
	} else {
		fmt.Println("verdict: UNSAFE")
		for _, rule := range result.Rules {
			line := fmt.Sprintf("  rule: %s", rule.RuleName)
			if rule.Classification != "" {
				line += fmt.Sprintf(" (%s)", rule.Classification)
			}
			fmt.Println(line)
		}
	}
	if result.Severity != "" && result.Severity != aidefense.SeverityNone {
		fmt.Printf("severity: %s\n", result.Severity)
	}
	if result.Explanation != "" {
		fmt.Printf("explanation: %s\n", result.Explanation)
	}
	if result.EventID != "" {
		fmt.Printf("event id: %s\n", result.EventID)
	}
}

func fail(err error) error {
	var apiErr *aidefense.APIError
	if errors.As(err, &apiErr) && apiErr.RequestID != "" {
		return fmt.Errorf("%w (quote request id %s to support)", err, apiErr.RequestID)
	}
	return err
}

func newInspectCmd() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect chat content or HTTP transactions",
	}

	promptCmd := &cobra.Command{
		Use:   "prompt <text>",
		Short: "Inspect a prompt before it reaches a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := aidefense.NewChatClient(inspectionOptions()...)
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.InspectPrompt(cmd.Context(), args[0], aidefense.InspectOptions{})
			if err != nil {
				return fail(err)
			}
			printResult(result)
			return nil
		},
	}

	var (
		method  string
		httpURL string
		body    string
	)
	httpCmd := &cobra.Command{
		Use:   "http",
		Short: "Inspect an HTTP request description",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := aidefense.NewHTTPClient(inspectionOptions()...)
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.InspectRequest(cmd.Context(), method, httpURL, nil, body, aidefense.InspectOptions{})
			if err != nil {
				return fail(err)
			}
			printResult(result)
			return nil
		},
	}
	httpCmd.Flags().StringVar(&method, "method", "POST", "HTTP method of the inspected request")
	httpCmd.Flags().StringVar(&httpURL, "url", "", "URL of the inspected request")
	httpCmd.Flags().StringVar(&body, "body", "", "body of the inspected request")
	httpCmd.MarkFlagRequired("url")

	inspectCmd.AddCommand(promptCmd, httpCmd)
	return inspectCmd
}

func newScanClient() (*modelscan.Client, error) {
	opts := []modelscan.Option{
		modelscan.WithAPIKey(os.Getenv("AIDEFENSE_MANAGEMENT_API_KEY")),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, modelscan.WithBaseURL(cfg.BaseURL))
	}
	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	if level != "" {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil {
			lvl = zerolog.InfoLevel
		}
		opts = append(opts, modelscan.WithLogger(
			zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()))
	}
	return modelscan.New(opts...)
}

func printScanInfo(info *modelscan.ScanStatusInfo) {
	fmt.Printf("scan %s: %s\n", info.ScanID, info.Status)
	for _, file := range info.AnalysisResults.Items {
		fmt.Printf("  %s (%d bytes): %s\n", file.Name, file.Size, file.Status)
		for _, technique := range file.Threats.Items {
			fmt.Printf("    %s %s\n", technique.TechniqueID, technique.TechniqueName)
		}
	}
}

func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan model files and repositories for threats",
	}

	fileCmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Upload and scan a local model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newScanClient()
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.ScanFile(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			printScanInfo(info)
			return nil
		},
	}

	var hfToken string
	repoCmd := &cobra.Command{
		Use:   "repo <url>",
		Short: "Scan a model repository by URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newScanClient()
			if err != nil {
				return err
			}
			defer client.Close()

			repo := &modelscan.ModelRepoConfig{
				URL:  args[0],
				Type: modelscan.URLTypeHuggingFace,
			}
			if hfToken != "" {
				repo.Auth = &modelscan.Auth{
					HuggingFace: &modelscan.HuggingFaceAuth{AccessToken: hfToken},
				}
			}

			info, err := client.ScanRepo(cmd.Context(), repo)
			if err != nil {
				return fail(err)
			}
			printScanInfo(info)
			return nil
		},
	}
	repoCmd.Flags().StringVar(&hfToken, "hf-token", "", "HuggingFace access token for private repositories")

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List scans for the tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newScanClient()
			if err != nil {
				return err
			}
			defer client.Close()

			res, err := client.ListScans(cmd.Context(), &modelscan.ListScansRequest{Limit: limit})
			if err != nil {
				return fail(err)
			}
			for _, scan := range res.Scans.Items {
				fmt.Printf("%s  %-12s %-22s %s\n", scan.ScanID, scan.Status, scan.Type, scan.Name)
			}
			fmt.Printf("%d of %d scans\n", len(res.Scans.Items), res.Scans.Paging.Total)
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of scans to list")

	scanCmd.AddCommand(fileCmd, repoCmd, listCmd)
	return scanCmd
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "aidefense",
		Short:         "Cisco AI Defense inspection and model scanning",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadSettings()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML settings file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "per-call timeout override")

	rootCmd.AddCommand(newInspectCmd(), newScanCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
