package deploy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipway/internal/feature"
	"shipway/internal/retry"
)

// fakeAlias simulates a deployment platform alias with instant
// propagation unless configured otherwise.
type fakeAlias struct {
	targets      map[string]string // component -> deployment id
	stuck        bool              // Resolve reports a stale id forever
	probeErr     error
	failRollFwd  bool
	probeCalls   int
	retargetLog  []string
	probeErrOnce bool // fail the first probe only (the rollback probe)
}

func newFakeAlias(initial map[string]string) *fakeAlias {
	targets := map[string]string{}
	for k, v := range initial {
		targets[k] = v
	}
	return &fakeAlias{targets: targets}
}

func (f *fakeAlias) Retarget(ctx context.Context, env feature.Environment, component, id string) error {
	if f.failRollFwd && len(f.retargetLog) > 0 {
		return errors.New("platform rejected retarget")
	}
	f.retargetLog = append(f.retargetLog, fmt.Sprintf("%s/%s->%s", env, component, id))
	if !f.stuck {
		f.targets[component] = id
	}
	return nil
}

func (f *fakeAlias) Resolve(ctx context.Context, env feature.Environment, component string) (string, error) {
	return f.targets[component], nil
}

func (f *fakeAlias) Probe(ctx context.Context, env feature.Environment) error {
	f.probeCalls++
	if f.probeErr != nil {
		if f.probeErrOnce && f.probeCalls > 1 {
			return nil
		}
		return f.probeErr
	}
	return nil
}

var fastRetry = retry.Config{MaxAttempts: 3, Interval: time.Millisecond}

// verifierFixture builds a doc with a current staging deployment and an
// archived prior one.
func verifierFixture(t *testing.T) (*feature.Document, *History) {
	t.Helper()
	h := newHistory(t)
	tr := NewTracker(h, nil)
	doc := newDoc(t, feature.ModelStagingProd)
	require.NoError(t, tr.Record(doc, feature.EnvStaging, stagingRecord("run-1", "aaa111")))
	require.NoError(t, tr.Record(doc, feature.EnvStaging, stagingRecord("run-2", "bbb222")))
	return doc, h
}

func TestVerifyHappyPath(t *testing.T) {
	doc, h := verifierFixture(t)
	alias := newFakeAlias(doc.Deployment.Staging.DeploymentIDs)
	v := NewVerifier(alias, h, fastRetry, nil)

	verification, err := v.Verify(context.Background(), doc, feature.EnvStaging)
	require.NoError(t, err)

	assert.True(t, verification.Passed)
	assert.Equal(t, feature.EnvStaging, verification.Environment)
	assert.Contains(t, verification.FromID, "app=app-run-2")
	assert.Contains(t, verification.ToID, "app=app-run-1")
	assert.Same(t, verification, doc.Deployment.RollbackVerification)

	// The alias ends up pointing back at the current deployment.
	assert.Equal(t, "app-run-2", alias.targets["app"])
	assert.Equal(t, "api-run-2", alias.targets["api"])
}

func TestVerifyPropagationTimeout(t *testing.T) {
	doc, h := verifierFixture(t)
	prodBefore := doc.Deployment.Production
	stagingBefore := *doc.Deployment.Staging

	alias := newFakeAlias(doc.Deployment.Staging.DeploymentIDs)
	alias.stuck = true
	v := NewVerifier(alias, h, fastRetry, nil)

	_, err := v.Verify(context.Background(), doc, feature.EnvStaging)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepPropagation, verr.Step)

	// Deployment records are untouched: no partial promotion.
	assert.Equal(t, prodBefore, doc.Deployment.Production)
	assert.Equal(t, stagingBefore.RunID, doc.Deployment.Staging.RunID)
	assert.Equal(t, stagingBefore.Deployed, doc.Deployment.Staging.Deployed)

	// The failure itself is recorded for the promotion check.
	require.NotNil(t, doc.Deployment.RollbackVerification)
	assert.False(t, doc.Deployment.RollbackVerification.Passed)
	assert.Equal(t, StepPropagation, doc.Deployment.RollbackVerification.FailedStep)
}

func TestVerifyLivenessProbeFailure(t *testing.T) {
	doc, h := verifierFixture(t)
	alias := newFakeAlias(doc.Deployment.Staging.DeploymentIDs)
	alias.probeErr = errors.New("503 from /healthz")
	alias.probeErrOnce = true
	v := NewVerifier(alias, h, fastRetry, nil)

	_, err := v.Verify(context.Background(), doc, feature.EnvStaging)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepLiveness, verr.Step)
}

func TestVerifyRollForwardFailure(t *testing.T) {
	doc, h := verifierFixture(t)
	alias := newFakeAlias(doc.Deployment.Staging.DeploymentIDs)
	alias.failRollFwd = true
	v := NewVerifier(alias, h, fastRetry, nil)

	_, err := v.Verify(context.Background(), doc, feature.EnvStaging)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepRollForward, verr.Step)
}

func TestVerifyWithoutPriorDeployment(t *testing.T) {
	h := newHistory(t)
	tr := NewTracker(h, nil)
	doc := newDoc(t, feature.ModelStagingProd)
	require.NoError(t, tr.Record(doc, feature.EnvStaging, stagingRecord("run-1", "aaa111")))

	alias := newFakeAlias(doc.Deployment.Staging.DeploymentIDs)
	v := NewVerifier(alias, h, fastRetry, nil)

	_, err := v.Verify(context.Background(), doc, feature.EnvStaging)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepReadHistory, verr.Step)
	assert.Empty(t, alias.retargetLog, "no alias movement without history")
}

func TestVerifyWithoutCurrentDeployment(t *testing.T) {
	h := newHistory(t)
	doc := newDoc(t, feature.ModelStagingProd)
	v := NewVerifier(newFakeAlias(nil), h, fastRetry, nil)

	_, err := v.Verify(context.Background(), doc, feature.EnvStaging)

	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepReadHistory, verr.Step)
}
