package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BibekSapkota1/Share-Project/internal/model"
)

// setupEnv points the CLI at a fresh CSV and sqlite file.
func setupEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("Symbol,Date,Open,High,Low,Close,Volume,Turnover\n")
	for i := 0; i < 20; i++ {
		day := fmt.Sprintf("2024-01-%02d", i+1)
		fmt.Fprintf(&b, "UP,%s,1,1,1,%d,100,9000\n", day, 100+i)
		fmt.Fprintf(&b, "DOWN,%s,1,1,1,%d,100,5000\n", day, 200-i)
	}
	csvPath := filepath.Join(dir, "prices.csv")
	if err := os.WriteFile(csvPath, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("DATA_FILE", csvPath)
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "cycles.db"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd, closeApp := newRootCmd()
	defer closeApp()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("rsictl %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestSymbolsAndScan(t *testing.T) {
	setupEnv(t)

	if out := mustExecute(t, "symbols"); out != "DOWN\nUP\n" {
		t.Errorf("symbols = %q", out)
	}

	var scan model.UniverseScan
	if err := json.Unmarshal([]byte(mustExecute(t, "scan", "--json")), &scan); err != nil {
		t.Fatal(err)
	}
	if scan.Summary.Total != 2 || len(scan.Symbols) != 2 {
		t.Errorf("summary = %+v", scan.Summary)
	}

	out := mustExecute(t, "scan", "UP")
	if !strings.Contains(out, "UP") || !strings.Contains(out, "2024-01-20") {
		t.Errorf("scan UP = %q", out)
	}
}

func TestAnalyze(t *testing.T) {
	setupEnv(t)

	var a model.Analysis
	if err := json.Unmarshal([]byte(mustExecute(t, "analyze", "down", "--period", "5", "--json")), &a); err != nil {
		t.Fatal(err)
	}
	if a.Symbol != "DOWN" || a.Settings.RSIPeriod != 5 {
		t.Errorf("analysis = %s period %d", a.Symbol, a.Settings.RSIPeriod)
	}

	if _, err := execute(t, "analyze", "UP", "--upper", "20", "--lower", "30"); err == nil {
		t.Error("expected invalid thresholds to fail")
	}
	if _, err := execute(t, "analyze", "NOPE"); err == nil {
		t.Error("expected unknown symbol to fail")
	}
}

func TestTradeLifecycle(t *testing.T) {
	setupEnv(t)

	out := mustExecute(t, "buy", "UP", "--date", "2024-01-19", "--price", "118")
	if !strings.Contains(out, "opened UP cycle 1") || !strings.Contains(out, "118.00") {
		t.Errorf("buy = %q", out)
	}
	if _, err := execute(t, "buy", "UP"); err == nil {
		t.Error("second buy should fail while a cycle is open")
	}

	if _, err := execute(t, "sell", "UP", "--reason", "AUTOMATIC", "--date", "bad"); err == nil {
		t.Error("bad date should fail")
	}

	out = mustExecute(t, "sell", "UP", "--reason", "taking profit")
	if !strings.Contains(out, "closed UP cycle 1") || !strings.Contains(out, "taking profit") {
		t.Errorf("sell = %q", out)
	}

	var cycles []model.TradeCycle
	if err := json.Unmarshal([]byte(mustExecute(t, "cycles", "--symbol", "up", "--json")), &cycles); err != nil {
		t.Fatal(err)
	}
	if len(cycles) != 1 || cycles[0].IsOpen() || cycles[0].ProfitLoss == nil || *cycles[0].ProfitLoss != 1 {
		t.Fatalf("cycles = %+v", cycles)
	}

	if _, err := execute(t, "sell", "UP"); err == nil {
		t.Error("sell without an open cycle should fail")
	}

	out = mustExecute(t, "performance")
	if !strings.Contains(out, "cycles 1 (open 0, closed 1), win rate 100.00%") || !strings.Contains(out, "realized 1.00") {
		t.Errorf("performance = %q", out)
	}
}

func TestSettingsCommands(t *testing.T) {
	setupEnv(t)

	if out := mustExecute(t, "settings"); !strings.Contains(out, "rsi_period       14") {
		t.Errorf("defaults = %q", out)
	}
	out := mustExecute(t, "settings", "set", "--period", "10", "--tsl", "8")
	if !strings.Contains(out, "rsi_period       10") || !strings.Contains(out, "tsl_percent      8.00") {
		t.Errorf("set = %q", out)
	}
	// Other users keep the defaults.
	if out := mustExecute(t, "settings", "--user", "2"); !strings.Contains(out, "rsi_period       14") {
		t.Errorf("user 2 = %q", out)
	}

	if _, err := execute(t, "settings", "set"); err == nil {
		t.Error("empty set should fail")
	}
	if _, err := execute(t, "settings", "set", "--upper", "10"); err == nil {
		t.Error("upper below lower should fail")
	}

	out = mustExecute(t, "settings", "reset", "rsi_period")
	if !strings.Contains(out, "rsi_period       14") || !strings.Contains(out, "tsl_percent      8.00") {
		t.Errorf("reset = %q", out)
	}
	if _, err := execute(t, "settings", "reset", "bogus"); err == nil {
		t.Error("unknown key should fail")
	}
}
