package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/dailyreport/internal/config"
	"github.com/ppiankov/dailyreport/internal/storage"
	"github.com/spf13/cobra"
)

const doctorPingTimeout = 15 * time.Second

var (
	doctorFormat  string
	doctorOffline bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment readiness and diagnose common problems",
	Long: `Doctor validates your dailyreport setup end-to-end:

  1. Config file: found and readable?
  2. Storage: backend reachable, report collection readable?
  3. Credentials: Coze token and bot id configured?
  4. Profiles: credentials file profiles available?
  5. API connectivity: does the bot answer? (skipped with --offline)

Fix the issues it reports, then run 'dailyreport weekly' with confidence.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text",
		"output format: text or json")
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false,
		"skip the API connectivity check")
}

type doctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warn", "fail"
	Detail string `json:"detail,omitempty"`
}

type doctorResult struct {
	Checks  []doctorCheck `json:"checks"`
	Summary string        `json:"summary"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	var checks []doctorCheck

	// 1. Config file
	checks = append(checks, checkConfig())

	// 2. Storage backend
	checks = append(checks, checkStorage(ctx))

	// 3. Credentials
	credentials := checkCredentials()
	checks = append(checks, credentials)

	// 4. Credential profiles
	checks = append(checks, checkProfiles())

	// 5. API connectivity
	if !doctorOffline && credentials.Status == "ok" {
		checks = append(checks, checkAPI(ctx))
	}

	result := doctorResult{Checks: checks, Summary: summarizeChecks(checks)}

	if doctorFormat == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	return writeDoctorText(cmd.OutOrStdout(), result)
}

func summarizeChecks(checks []doctorCheck) string {
	fails, warns := 0, 0
	for _, c := range checks {
		switch c.Status {
		case "fail":
			fails++
		case "warn":
			warns++
		}
	}

	switch {
	case fails > 0:
		return fmt.Sprintf("%d issue(s) found", fails)
	case warns > 0:
		return fmt.Sprintf("ok with %d warning(s)", warns)
	default:
		return "all checks passed"
	}
}

func writeDoctorText(w io.Writer, result doctorResult) error {
	icons := map[string]string{
		"ok":   "✓",
		"warn": "△",
		"fail": "✗",
	}

	for _, c := range result.Checks {
		icon := icons[c.Status]
		if c.Detail != "" {
			fmt.Fprintf(w, "  %s %-20s %s\n", icon, c.Name, c.Detail)
		} else {
			fmt.Fprintf(w, "  %s %s\n", icon, c.Name)
		}
	}

	_, err := fmt.Fprintf(w, "\n%s\n", result.Summary)
	return err
}

func checkConfig() doctorCheck {
	path := configFile
	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return doctorCheck{
			Name:   "config",
			Status: "warn",
			Detail: "no config file found (using defaults). Run: dailyreport init-config",
		}
	}
	if _, err := os.Stat(path); err != nil {
		return doctorCheck{
			Name:   "config",
			Status: "fail",
			Detail: fmt.Sprintf("%s not readable: %v", path, err),
		}
	}

	return doctorCheck{
		Name:   "config",
		Status: "ok",
		Detail: path,
	}
}

// findConfigFile returns the first existing config in the search path.
func findConfigFile() string {
	candidates := []string{"dailyreport.yaml", config.ConfigPath()}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "dailyreport.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func checkStorage(ctx context.Context) doctorCheck {
	bc, err := cfg.Backend()
	if err != nil {
		return doctorCheck{Name: "storage", Status: "fail", Detail: err.Error()}
	}
	where := storage.Describe(bc)

	if bc.Backend == storage.BackendFile || bc.Backend == "" {
		if c, done := checkStorageDir(bc.Dir); done {
			return c
		}
	}

	st, err := openStore(ctx)
	if err != nil {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: fmt.Sprintf("%s unavailable: %v", where, err),
		}
	}
	defer closeStore(st)

	if bc.Backend == storage.BackendMemory {
		return doctorCheck{
			Name:   "storage",
			Status: "warn",
			Detail: "memory backend: reports are lost when the process exits",
		}
	}

	return doctorCheck{
		Name:   "storage",
		Status: "ok",
		Detail: fmt.Sprintf("%s (%d report(s))", where, st.Count()),
	}
}

// checkStorageDir verifies the file backend directory. done is true when the
// returned check is final.
func checkStorageDir(dir string) (doctorCheck, bool) {
	info, err := os.Stat(dir)
	if err != nil {
		// Directory doesn't exist yet, it will be created on first write
		return doctorCheck{
			Name:   "storage",
			Status: "ok",
			Detail: fmt.Sprintf("%s (will be created on first write)", dir),
		}, true
	}

	if !info.IsDir() {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: fmt.Sprintf("%s exists but is not a directory", dir),
		}, true
	}

	// Try writing a temp file to check write access
	tmpFile := filepath.Join(dir, ".doctor-check")
	if err := os.WriteFile(tmpFile, []byte("ok"), 0600); err != nil {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: fmt.Sprintf("%s not writable: %v", dir, err),
		}, true
	}
	_ = os.Remove(tmpFile)

	return doctorCheck{}, false
}

func checkCredentials() doctorCheck {
	var missing []string
	if cfg.Coze.Token == "" {
		missing = append(missing, "token")
	}
	if cfg.Coze.BotID == "" {
		missing = append(missing, "bot_id")
	}

	if len(missing) > 0 {
		return doctorCheck{
			Name:   "credentials",
			Status: "warn",
			Detail: fmt.Sprintf("missing %s: weekly summaries unavailable. Set COZE_API_TOKEN and COZE_BOT_ID", joinMax(missing, 2)),
		}
	}

	return doctorCheck{
		Name:   "credentials",
		Status: "ok",
		Detail: fmt.Sprintf("bot %s at %s", cfg.Coze.BotID, cfg.Coze.BaseURL),
	}
}

func checkProfiles() doctorCheck {
	path := cfg.CredentialsPath()
	if path == "" {
		return doctorCheck{Name: "profiles", Status: "ok", Detail: "no home directory"}
	}
	if _, err := os.Stat(path); err != nil {
		return doctorCheck{
			Name:   "profiles",
			Status: "ok",
			Detail: fmt.Sprintf("%s not present (optional)", path),
		}
	}

	profiles, err := cfg.Profiles()
	if err != nil {
		return doctorCheck{
			Name:   "profiles",
			Status: "fail",
			Detail: fmt.Sprintf("%s unreadable: %v", path, err),
		}
	}
	if len(profiles) == 0 {
		return doctorCheck{
			Name:   "profiles",
			Status: "warn",
			Detail: fmt.Sprintf("%s has no profiles", path),
		}
	}

	return doctorCheck{
		Name:   "profiles",
		Status: "ok",
		Detail: fmt.Sprintf("%s (using %s; available: %s)", path, cfg.Coze.Profile, joinMax(profiles, 3)),
	}
}

func checkAPI(ctx context.Context) doctorCheck {
	svc, err := newSummaryService()
	if err != nil {
		return doctorCheck{Name: "api", Status: "fail", Detail: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, doctorPingTimeout)
	defer cancel()

	if err := svc.TestConnection(ctx); err != nil {
		return doctorCheck{
			Name:   "api",
			Status: "fail",
			Detail: fmt.Sprintf("unreachable (%v)", err),
		}
	}

	return doctorCheck{
		Name:   "api",
		Status: "ok",
		Detail: svc.BaseURL(),
	}
}

// joinMax joins up to n strings with ", ".
func joinMax(s []string, n int) string {
	if len(s) <= n {
		result := ""
		for i, v := range s {
			if i > 0 {
				result += ", "
			}
			result += v
		}
		return result
	}
	result := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			result += ", "
		}
		result += s[i]
	}
	return fmt.Sprintf("%s +%d more", result, len(s)-n)
}
