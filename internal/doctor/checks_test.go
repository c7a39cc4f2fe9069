package doctor

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbctool/sbctool/internal/config"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status   CheckStatus
		expected string
	}{
		{StatusPass, "pass"},
		{StatusWarn, "warn"},
		{StatusFail, "fail"},
		{CheckStatus(99), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.String())
		})
	}
}

func TestCheckResult_JSON(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "adb_key", Status: StatusWarn, Message: "No adb key"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"adb_key","status":"warn","message":"No adb key"}`, string(data))
}

// mockCheck is a test implementation of Check.
type mockCheck struct {
	name     string
	category string
	results  []CheckResult
	runs     int
	fixErr   error
	fixCalls int
}

func (m *mockCheck) Name() string     { return m.name }
func (m *mockCheck) Category() string { return m.category }
func (m *mockCheck) Run(context.Context) CheckResult {
	r := m.results[min(m.runs, len(m.results)-1)]
	m.runs++
	return r
}
func (m *mockCheck) Fix() error {
	m.fixCalls++
	return m.fixErr
}

func pass(name string) CheckResult { return CheckResult{Name: name, Status: StatusPass} }
func fail(name string) CheckResult { return CheckResult{Name: name, Status: StatusFail} }

func TestRunAll_KeepsOrder(t *testing.T) {
	checks := []Check{
		&mockCheck{name: "one", results: []CheckResult{pass("one")}},
		&mockCheck{name: "two", results: []CheckResult{fail("two")}},
		&mockCheck{name: "three", results: []CheckResult{pass("three")}},
	}

	for name, run := range map[string]func(context.Context, []Check) []CheckResult{
		"sequential": RunAll,
		"parallel":   RunAllParallel,
	} {
		t.Run(name, func(t *testing.T) {
			results := run(context.Background(), checks)
			require.Len(t, results, 3)
			assert.Equal(t, "one", results[0].Name)
			assert.Equal(t, StatusFail, results[1].Status)
			assert.Equal(t, "three", results[2].Name)
		})
	}
}

func TestFix_RerunsOnlyFixableIssues(t *testing.T) {
	fixable := &mockCheck{name: "perms", results: []CheckResult{
		{Name: "perms", Status: StatusFail, Fixable: true},
		pass("perms"),
	}}
	manual := &mockCheck{name: "agent", results: []CheckResult{fail("agent")}}
	broken := &mockCheck{name: "key", fixErr: stderrors.New("read-only"), results: []CheckResult{
		{Name: "key", Status: StatusWarn, Fixable: true},
	}}
	healthy := &mockCheck{name: "config", results: []CheckResult{{Name: "config", Status: StatusPass, Fixable: true}}}

	checks := []Check{fixable, manual, broken, healthy}
	results := Fix(context.Background(), checks, RunAll(context.Background(), checks))

	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, 1, fixable.fixCalls)
	assert.Equal(t, 0, manual.fixCalls)
	assert.Equal(t, StatusWarn, results[2].Status, "failed fix keeps the old result")
	assert.Equal(t, 1, broken.runs)
	assert.Equal(t, 0, healthy.fixCalls)
}

func TestSummaryHelpers(t *testing.T) {
	results := []CheckResult{
		pass("a"),
		{Name: "b", Status: StatusWarn, Fixable: true},
		fail("c"),
		{Name: "d", Status: StatusFail, Fixable: true},
	}

	counts := CountByStatus(results)
	assert.Equal(t, 1, counts[StatusPass])
	assert.Equal(t, 1, counts[StatusWarn])
	assert.Equal(t, 2, counts[StatusFail])

	assert.True(t, HasFailures(results))
	assert.True(t, HasIssues(results))
	assert.Equal(t, 2, FixableCount(results))
	assert.Equal(t, "3 issues found", Summary(results))

	assert.Equal(t, "1 issue found", Summary([]CheckResult{pass("a"), {Status: StatusWarn}}))
	assert.Equal(t, "Everything looks good", Summary([]CheckResult{pass("a")}))
	assert.False(t, HasIssues([]CheckResult{pass("a")}))
	assert.False(t, HasFailures([]CheckResult{{Status: StatusWarn}}))
}

func TestNewChecks(t *testing.T) {
	checks := NewChecks("", nil)

	var categories []string
	for _, c := range checks {
		if len(categories) == 0 || categories[len(categories)-1] != c.Category() {
			categories = append(categories, c.Category())
		}
	}
	assert.Equal(t, CategoryOrder, categories)

	cfg := config.DefaultConfig()
	cfg.SSH.Mode = config.SSHModeExec
	for _, c := range NewChecks("", cfg) {
		if client, ok := c.(*SSHClientCheck); ok {
			assert.Equal(t, config.SSHModeExec, client.Mode)
		}
		if server, ok := c.(*ADBServerCheck); ok {
			assert.Equal(t, cfg.ADB.ServerAddr, server.Addr)
		}
	}
}
