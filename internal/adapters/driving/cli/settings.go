package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage engine settings",
	Long: `View and change chunking, retrieval, embedding and LLM settings.

Settings are read from the config file and may be overridden by SERCHA_*
environment variables, e.g. SERCHA_RETRIEVAL_ALPHA=0.7.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Long: `Validates and saves a setting to the config file.

When setting embedding.api_key without a value, the key is read from the
terminal without echo.

Examples:
  sercha-rag settings set retrieval.alpha 0.7
  sercha-rag settings set embedding.provider ollama
  sercha-rag settings set embedding.api_key`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List setting keys and their environment variables",
	RunE:  runSettingsKeys,
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if settingsService == nil {
			return errors.New("settings service not configured")
		}
		fmt.Fprintln(cmd.OutOrStdout(), settingsService.Path())
		return nil
	},
}

// apiKeySetting is read without echo when no value is given.
const apiKeySetting = "embedding.api_key"

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsPathCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cfg, err := settingsService.Engine()
	if err != nil {
		return err
	}
	view := settingsView(cfg)

	if wantJSON(cmd) {
		return printJSON(cmd, view)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Config file: %s\n\n", settingsService.Path())
	tw := newTable(w)
	for _, key := range settingsService.Keys() {
		fmt.Fprintf(tw, "%s\t%s\n", key, view[key])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if cfg.LLM.IsConfigured() {
		fmt.Fprintf(w, "Answers: enabled (%s)\n", cfg.LLM.Model)
	} else {
		fmt.Fprintln(w, "Answers: disabled (set llm.provider to ollama)")
	}
	return nil
}

// settingsView flattens the configuration to the keys accepted by set.
func settingsView(cfg domain.EngineConfig) map[string]string {
	apiKey := ""
	if cfg.Embedding.APIKey != "" {
		apiKey = maskAPIKey(cfg.Embedding.APIKey)
	}
	return map[string]string{
		"chunking.chunk_size":           strconv.Itoa(cfg.Chunking.ChunkSize),
		"chunking.chunk_overlap":        strconv.Itoa(cfg.Chunking.ChunkOverlap),
		"chunking.boundary_tolerance":   strconv.Itoa(cfg.Chunking.BoundaryTolerance),
		"retrieval.alpha":               formatFloat(cfg.Retrieval.Alpha),
		"retrieval.document_cap":        strconv.Itoa(cfg.Retrieval.DocumentCap),
		"retrieval.top_k":               strconv.Itoa(cfg.Retrieval.DefaultK),
		"retrieval.min_candidates":      strconv.Itoa(cfg.Retrieval.MinCandidates),
		"retrieval.widen_factor":        strconv.Itoa(cfg.Retrieval.WidenFactor),
		"retrieval.min_similarity":      formatFloat(cfg.Retrieval.MinSimilarity),
		"embedding.provider":            string(cfg.Embedding.Provider),
		"embedding.model":               cfg.Embedding.Model,
		"embedding.base_url":            cfg.Embedding.BaseURL,
		"embedding.api_key":             apiKey,
		"embedding.dimensions":          strconv.Itoa(cfg.Embedding.Dimensions),
		"embedding.requests_per_second": formatFloat(cfg.Embedding.RequestsPerSecond),
		"embedding.timeout":             cfg.EmbedTimeout.String(),
		"llm.provider":                  string(cfg.LLM.Provider),
		"llm.model":                     cfg.LLM.Model,
		"llm.base_url":                  cfg.LLM.BaseURL,
		"storage.data_dir":              cfg.DataDir,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case key == apiKeySetting:
		fmt.Fprint(cmd.OutOrStdout(), "API key: ")
		value = readPassword()
		fmt.Fprintln(cmd.OutOrStdout())
	default:
		return fmt.Errorf("%w: %s needs a value", domain.ErrValidation, key)
	}

	if err := settingsService.Set(key, value); err != nil {
		return err
	}

	shown := value
	if key == apiKeySetting {
		shown = maskAPIKey(value)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, shown)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "KEY\tENVIRONMENT")
	for _, key := range settingsService.Keys() {
		fmt.Fprintf(tw, "%s\t%s\n", key, settingsService.EnvVar(key))
	}
	return tw.Flush()
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
