package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	settlementDomain "github.com/felixgeelhaar/trustline/internal/settlement/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSettlementRunner struct {
	result settlementDomain.RunResult
	err    error
}

func (s *stubSettlementRunner) Run(ctx context.Context) (settlementDomain.RunResult, error) {
	return s.result, s.err
}

type stubRunHistory struct {
	run *settlementDomain.SettlementRun
	err error
}

func (s *stubRunHistory) FindLatest(ctx context.Context) (*settlementDomain.SettlementRun, error) {
	return s.run, s.err
}

func TestSettleRunCmd_NoApp(t *testing.T) {
	SetApp(nil)

	settleRunCmd.SetContext(context.Background())
	err := settleRunCmd.RunE(settleRunCmd, []string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires database connection")
}

func TestSettleRunCmd_PrintsResult(t *testing.T) {
	SetApp(&App{Settlement: &stubSettlementRunner{
		result: settlementDomain.RunResult{
			Ran:        true,
			Processed:  3,
			SkippedKyc: 1,
			BelowMin:   2,
			TotalMoved: 264000,
			Currency:   "KRW",
		},
	}})
	defer SetApp(nil)

	var output strings.Builder
	settleRunCmd.SetContext(context.Background())
	settleRunCmd.SetOut(&output)

	err := settleRunCmd.RunE(settleRunCmd, []string{})
	require.NoError(t, err)
	assert.Contains(t, output.String(), "Processed:   3")
	assert.Contains(t, output.String(), "Total moved: 264000 KRW")
}

func TestSettleRunCmd_Disabled(t *testing.T) {
	SetApp(&App{Settlement: &stubSettlementRunner{result: settlementDomain.RunResult{Ran: false}}})
	defer SetApp(nil)

	var output strings.Builder
	settleRunCmd.SetContext(context.Background())
	settleRunCmd.SetOut(&output)

	err := settleRunCmd.RunE(settleRunCmd, []string{})
	require.NoError(t, err)
	assert.Contains(t, output.String(), "Settlement is disabled.")
}

func TestSettleStatusCmd_NoRuns(t *testing.T) {
	SetApp(&App{Runs: &stubRunHistory{}})
	defer SetApp(nil)

	var output strings.Builder
	settleStatusCmd.SetContext(context.Background())
	settleStatusCmd.SetOut(&output)

	err := settleStatusCmd.RunE(settleStatusCmd, []string{})
	require.NoError(t, err)
	assert.Contains(t, output.String(), "No settlement runs recorded.")
}

func TestSettleStatusCmd_PrintsLatestRun(t *testing.T) {
	run := settlementDomain.NewSettlementRun()
	run.Finish(settlementDomain.RunResult{
		Ran:        true,
		Processed:  2,
		TotalMoved: 88000,
		Currency:   "KRW",
	})
	SetApp(&App{Runs: &stubRunHistory{run: run}})
	defer SetApp(nil)

	var output strings.Builder
	settleStatusCmd.SetContext(context.Background())
	settleStatusCmd.SetOut(&output)

	err := settleStatusCmd.RunE(settleStatusCmd, []string{})
	require.NoError(t, err)
	assert.Contains(t, output.String(), "Processed:   2")
	assert.Contains(t, output.String(), "Total moved: 88000 KRW")
	assert.NotContains(t, output.String(), "in progress")
}

func TestWorkerCmd_NoApp(t *testing.T) {
	SetApp(nil)

	workerCmd.SetContext(context.Background())
	err := workerCmd.RunE(workerCmd, []string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires database connection")
}

type blockingRunner struct{ started chan struct{} }

func (b *blockingRunner) Run(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	return nil
}

func TestServeCmd_StopsOnContextCancel(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{})}
	SetApp(&App{API: runner})
	defer SetApp(nil)

	ctx, cancel := context.WithCancel(context.Background())
	serveCmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- serveCmd.RunE(serveCmd, []string{}) }()

	<-runner.started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop on context cancel")
	}
}
