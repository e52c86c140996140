// Package deploy tracks per-environment deployment records and proves
// rollback capability before production promotion.
package deploy

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"shipway/internal/feature"
)

// Tracker records deployment attempts on the workflow document.
// Each environment holds exactly one current record; re-deploying
// overwrites it, and the outgoing record is archived in the history log.
type Tracker struct {
	history *History
	log     *zap.Logger
}

// NewTracker creates a Tracker backed by the given history log.
func NewTracker(history *History, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{history: history, log: log}
}

// Record writes the current deployment record for an environment.
//
// Under the staging_prod topology a production record with deployed=true
// is only accepted when a passing rollback verification exists that is
// newer than the most recent staging deployment.
func (t *Tracker) Record(doc *feature.Document, env feature.Environment, rec *feature.DeploymentRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("deployment record for %s is missing a run id", env)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if env == feature.EnvProduction && rec.Deployed && doc.DeploymentModel == feature.ModelStagingProd {
		if err := checkPromotion(doc); err != nil {
			return err
		}
	}

	if prior := doc.Deployment.Record(env); prior != nil {
		if err := t.history.Append(env, prior); err != nil {
			return err
		}
	}

	doc.Deployment.SetRecord(env, rec)
	t.log.Info("deployment recorded",
		zap.String("environment", string(env)),
		zap.String("runId", rec.RunID),
		zap.String("commitSha", rec.CommitSHA),
		zap.Bool("deployed", rec.Deployed))
	return nil
}

// RecordHealthCheck stores a named health check verdict on an
// environment's current deployment record.
func (t *Tracker) RecordHealthCheck(doc *feature.Document, env feature.Environment, check string, passed bool) error {
	rec := doc.Deployment.Record(env)
	if rec == nil {
		return fmt.Errorf("no deployment recorded for %s", env)
	}
	if rec.HealthChecks == nil {
		rec.HealthChecks = map[string]bool{}
	}
	rec.HealthChecks[check] = passed
	return nil
}

// checkPromotion enforces the rollback-before-production invariant.
func checkPromotion(doc *feature.Document) error {
	staging := doc.Deployment.Staging
	if staging == nil || !staging.Deployed {
		return &PromotionBlockedError{Reason: "no successful staging deployment exists"}
	}

	v := doc.Deployment.RollbackVerification
	if v == nil {
		return &PromotionBlockedError{Reason: "rollback has not been verified"}
	}
	if !v.Passed {
		return &PromotionBlockedError{Reason: fmt.Sprintf("last rollback verification failed at step %s", v.FailedStep)}
	}
	if !v.VerifiedAt.After(staging.Timestamp) {
		return &PromotionBlockedError{Reason: "rollback verification predates the latest staging deployment"}
	}
	return nil
}
