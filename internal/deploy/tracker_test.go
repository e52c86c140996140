package deploy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipway/internal/feature"
)

func newDoc(t *testing.T, model feature.DeploymentModel) *feature.Document {
	t.Helper()
	doc, err := feature.NewDocument("profile-redesign", "Profile redesign", "feature/profile-redesign", model)
	require.NoError(t, err)
	return doc
}

func newHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func stagingRecord(runID, sha string) *feature.DeploymentRecord {
	return &feature.DeploymentRecord{
		Deployed:      true,
		Timestamp:     time.Now().UTC(),
		CommitSHA:     sha,
		RunID:         runID,
		DeploymentIDs: map[string]string{"app": "app-" + runID, "api": "api-" + runID},
		URL:           "https://staging.example.com",
	}
}

func TestRecordOverwritesAndArchivesPrior(t *testing.T) {
	h := newHistory(t)
	tr := NewTracker(h, nil)
	doc := newDoc(t, feature.ModelStagingProd)

	require.NoError(t, tr.Record(doc, feature.EnvStaging, stagingRecord("run-1", "aaa111")))
	require.NoError(t, tr.Record(doc, feature.EnvStaging, stagingRecord("run-2", "bbb222")))

	// The document holds only the current record.
	assert.Equal(t, "run-2", doc.Deployment.Staging.RunID)

	// The prior record is retained in the history log.
	prev, err := h.Latest(feature.EnvStaging)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "run-1", prev.RunID)
	assert.Equal(t, "app-run-1", prev.DeploymentIDs["app"])

	count, err := h.Count(feature.EnvStaging)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordFirstDeploymentHasNoHistory(t *testing.T) {
	h := newHistory(t)
	tr := NewTracker(h, nil)
	doc := newDoc(t, feature.ModelStagingProd)

	require.NoError(t, tr.Record(doc, feature.EnvStaging, stagingRecord("run-1", "aaa111")))

	prev, err := h.Latest(feature.EnvStaging)
	require.NoError(t, err)
	assert.Nil(t, prev)
}

func TestRecordRequiresRunID(t *testing.T) {
	tr := NewTracker(newHistory(t), nil)
	doc := newDoc(t, feature.ModelStagingProd)

	err := tr.Record(doc, feature.EnvStaging, &feature.DeploymentRecord{Deployed: true})
	require.Error(t, err)
}

func TestProductionPromotionBlockedWithoutVerification(t *testing.T) {
	tr := NewTracker(newHistory(t), nil)
	doc := newDoc(t, feature.ModelStagingProd)
	require.NoError(t, tr.Record(doc, feature.EnvStaging, stagingRecord("run-1", "aaa111")))

	err := tr.Record(doc, feature.EnvProduction, stagingRecord("run-2", "aaa111"))
	var blocked *PromotionBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Nil(t, doc.Deployment.Production)
}

func TestProductionPromotionBlockedByStaleVerification(t *testing.T) {
	tr := NewTracker(newHistory(t), nil)
	doc := newDoc(t, feature.ModelStagingProd)

	// Verification passed, but a newer staging deployment superseded it.
	doc.Deployment.RollbackVerification = &feature.RollbackVerification{
		Environment: feature.EnvStaging,
		VerifiedAt:  time.Now().UTC().Add(-time.Hour),
		Passed:      true,
	}
	require.NoError(t, tr.Record(doc, feature.EnvStaging, stagingRecord("run-3", "ccc333")))

	err := tr.Record(doc, feature.EnvProduction, stagingRecord("run-4", "ccc333"))
	var blocked *PromotionBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Contains(t, blocked.Error(), "predates")
}

func TestProductionPromotionBlockedByFailedVerification(t *testing.T) {
	tr := NewTracker(newHistory(t), nil)
	doc := newDoc(t, feature.ModelStagingProd)
	require.NoError(t, tr.Record(doc, feature.EnvStaging, stagingRecord("run-1", "aaa111")))

	doc.Deployment.RollbackVerification = &feature.RollbackVerification{
		Environment: feature.EnvStaging,
		VerifiedAt:  time.Now().UTC(),
		Passed:      false,
		FailedStep:  StepPropagation,
	}

	err := tr.Record(doc, feature.EnvProduction, stagingRecord("run-2", "aaa111"))
	var blocked *PromotionBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Contains(t, blocked.Error(), StepPropagation)
}

func TestProductionPromotionAllowedWithFreshVerification(t *testing.T) {
	tr := NewTracker(newHistory(t), nil)
	doc := newDoc(t, feature.ModelStagingProd)
	require.NoError(t, tr.Record(doc, feature.EnvStaging, stagingRecord("run-1", "aaa111")))

	doc.Deployment.RollbackVerification = &feature.RollbackVerification{
		Environment: feature.EnvStaging,
		VerifiedAt:  time.Now().UTC().Add(time.Second),
		Passed:      true,
	}

	require.NoError(t, tr.Record(doc, feature.EnvProduction, stagingRecord("run-2", "aaa111")))
	assert.True(t, doc.Deployment.Production.Deployed)
}

func TestDirectProdSkipsVerificationRequirement(t *testing.T) {
	tr := NewTracker(newHistory(t), nil)
	doc := newDoc(t, feature.ModelDirectProd)

	require.NoError(t, tr.Record(doc, feature.EnvProduction, stagingRecord("run-1", "aaa111")))
	assert.True(t, doc.Deployment.Production.Deployed)
}

func TestRecordHealthCheck(t *testing.T) {
	tr := NewTracker(newHistory(t), nil)
	doc := newDoc(t, feature.ModelStagingProd)
	require.NoError(t, tr.Record(doc, feature.EnvStaging, stagingRecord("run-1", "aaa111")))

	require.NoError(t, tr.RecordHealthCheck(doc, feature.EnvStaging, "http", true))
	require.NoError(t, tr.RecordHealthCheck(doc, feature.EnvStaging, "db", false))

	assert.True(t, doc.Deployment.Staging.HealthChecks["http"])
	assert.False(t, doc.Deployment.Staging.HealthChecks["db"])

	err := tr.RecordHealthCheck(doc, feature.EnvProduction, "http", true)
	require.Error(t, err, "health check on an undeployed environment must fail")
}
