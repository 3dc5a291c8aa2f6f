package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmerrifield20/CyberSentinel/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

const defaultAPIURL = "http://localhost:8000"

var (
	apiURL       string
	cfgFile      string
	outputFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "CyberSentinel threat analysis CLI",
	Long: `sentinel is the command-line interface for a CyberSentinel API server.

It submits incident scenarios for analysis, downloads PDF reports and
browses the case history kept by the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".cybersentinel"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("SENTINEL")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if apiURL == "" {
			apiURL = viper.GetString("api_url")
		}
		if apiURL == "" {
			apiURL = defaultAPIURL
		}
		switch outputFormat {
		case "text", "json":
			return nil
		default:
			return fmt.Errorf("--format must be text or json, got %q", outputFormat)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.cybersentinel/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "CyberSentinel API URL (default "+defaultAPIURL+")")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text or json")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	return client.New(apiURL)
}

// ── analyze ──────────────────────────────────────────────────────────────────

var analyzeReportDir string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [scenario | -]",
	Short: "Analyze a threat scenario",
	Long: `analyze submits a free-text incident scenario and prints the assessment.

The scenario is read from stdin when the argument is "-" or omitted:

  sentinel analyze "A user reports a pop-up demanding Bitcoin to unlock files"
  cat incident.txt | sentinel analyze -

With --report-dir the PDF report is downloaded alongside.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeReportDir, "report-dir", "", "Also download the PDF report into this directory")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	scenario, err := readScenario(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	ctx := context.Background()

	rec, err := c.Analyze(ctx, scenario)
	if client.IsServiceUnavailable(err) {
		return fmt.Errorf("the server cannot reach its inference service; check that it is running: %w", err)
	}
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		if err := printJSON(out, rec); err != nil {
			return err
		}
	} else {
		printRecord(out, rec)
	}

	if analyzeReportDir != "" {
		path, err := downloadReport(analyzeReportDir, func(w io.Writer) (string, error) {
			return c.GenerateReport(ctx, rec, w)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s\n", path)
	}
	return nil
}

func readScenario(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		if strings.TrimSpace(args[0]) == "" {
			return "", fmt.Errorf("scenario must not be empty")
		}
		return args[0], nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read scenario from stdin: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", fmt.Errorf("scenario must not be empty")
	}
	return string(b), nil
}

// ── report ───────────────────────────────────────────────────────────────────

var reportOutputDir string

var reportCmd = &cobra.Command{
	Use:   "report <case-id>",
	Short: "Download the PDF report for a stored case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		path, err := downloadReport(reportOutputDir, func(w io.Writer) (string, error) {
			return c.CaseReport(context.Background(), args[0], w)
		})
		if client.IsNotFound(err) {
			return fmt.Errorf("case %s not found on %s", args[0], apiURL)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutputDir, "output", "o", ".", "Directory to write the report into")
}

// downloadReport streams a report into dir under the server-supplied name.
// The file is written to a temporary name first and renamed on success.
func downloadReport(dir string, fetch func(io.Writer) (string, error)) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	name, err := fetch(tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, filepath.Base(name))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

// ── cases ────────────────────────────────────────────────────────────────────

var (
	casesLimit  int
	casesOffset int
)

var casesCmd = &cobra.Command{
	Use:   "cases [case-id]",
	Short: "List recent cases, or show one case",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			rec, err := c.GetCase(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get case: %w", err)
			}
			if outputFormat == "json" {
				return printJSON(out, rec)
			}
			printRecord(out, rec)
			return nil
		}

		page, err := c.ListCases(ctx, casesLimit, casesOffset)
		if err != nil {
			return fmt.Errorf("list cases: %w", err)
		}
		if outputFormat == "json" {
			return printJSON(out, page)
		}
		return printCaseTable(out, page.Cases)
	},
}

func init() {
	casesCmd.Flags().IntVar(&casesLimit, "limit", 20, "Maximum number of cases to list")
	casesCmd.Flags().IntVar(&casesOffset, "offset", 0, "Number of newest cases to skip")
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyCmd = &cobra.Command{
	Use:   "verify <case-id>",
	Short: "Check a stored case against its audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		v, err := c.VerifyCase(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("verify case: %w", err)
		}
		out := cmd.OutOrStdout()
		if outputFormat == "json" {
			if err := printJSON(out, v); err != nil {
				return err
			}
		} else {
			printVerdict(out, v)
		}
		if !v.Intact {
			return fmt.Errorf("case %s failed verification", v.CaseID)
		}
		return nil
	},
}

// ── health ───────────────────────────────────────────────────────────────────

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the server's dependency status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		h, err := c.Health(context.Background())
		if err != nil {
			return fmt.Errorf("health: %w", err)
		}
		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), h)
		}
		printHealth(cmd.OutOrStdout(), h)
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sentinel %s\n", version)
	},
}
