// Package pipeline provisions a WordPress site with Elementor Pro as an ordered sequence of stages.
//
// Each stage leads into one State. Mandatory stages stop the deployment on failure;
// best-effort stages record their failures and let the deployment continue.
// Nothing is rolled back: a failed Result carries the stage log needed to clean up by hand.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/pressops/wpdeploy/pkg/credentials"
	"github.com/pressops/wpdeploy/pkg/deployerr"
	"github.com/pressops/wpdeploy/pkg/logging"
	"github.com/pressops/wpdeploy/pkg/metrics"
	"github.com/pressops/wpdeploy/pkg/telemetry"
	"github.com/pressops/wpdeploy/pkg/transfer"
	log "github.com/sirupsen/logrus"
	otrace "go.opentelemetry.io/otel/trace"
)

const stagingDirName = ".wpdeploy"

type Orchestrator struct {
	Hosting     Hosting
	Sites       SiteManager
	Transfer    Transfer
	Credentials *credentials.Generator
	Salts       SaltSource
	Redactor    *logging.Redactor
	Metrics     *metrics.Metrics
	Tracer      otrace.Tracer
	Log         *log.Entry
}

type criticality int

const (
	mandatory criticality = iota
	bestEffort
)

type stage struct {
	state State
	run   func(ctx context.Context, r *run) error
}

// run is the mutable state of one deployment. It never outlives Deploy.
type run struct {
	id          string
	request     Request
	started     time.Time
	log         *log.Entry
	redactor    *logging.Redactor
	credentials *credentials.Credentials

	databaseName string
	databaseUser string
	stagingDir   string
	uploads      map[string]*transfer.Upload

	proInstalled bool

	stages      []StageResult
	transitions []State
}

func (r *run) state() State {
	return r.transitions[len(r.transitions)-1]
}

func (r *run) transition(state State) {
	if r.state() != state {
		r.transitions = append(r.transitions, state)
		r.log.WithField("stage", state).Debugf("Entered state %s", state)
	}
}

// Deploy runs the whole pipeline for one request. It never returns nil.
// Cancelling ctx stops the deployment before its next remote call.
func (o *Orchestrator) Deploy(ctx context.Context, request Request) *Result {
	r := &run{
		id:          uuid.New().String(),
		request:     request,
		started:     time.Now(),
		redactor:    o.Redactor,
		uploads:     make(map[string]*transfer.Upload),
		transitions: []State{Initializing},
	}
	if r.redactor == nil {
		r.redactor = logging.NewRedactor()
	}
	r.redactor.Add(request.Secrets()...)
	r.log = o.logger().WithFields(log.Fields{
		"deployment_id": r.id,
		"domain":        request.Domain,
	})

	ctx, span := telemetry.StartSpan(ctx, o.Tracer, "deploy",
		telemetry.AttributeDeploymentID.String(r.id),
		telemetry.AttributeDomain.String(request.Domain),
	)

	r.log.Infof("Starting deployment of %s", request.Domain)

	var err error
	for _, s := range o.stages() {
		started := time.Now()
		stageCtx, stageSpan := telemetry.StartSpan(ctx, o.Tracer, string(s.state), telemetry.AttributeStage.String(string(s.state)))
		err = s.run(stageCtx, r)
		telemetry.EndSpan(stageSpan, err)
		o.Metrics.StageFinished(string(s.state), stageOutcome(err), time.Since(started))

		if err != nil {
			break
		}
		r.transition(s.state)
	}

	result := o.result(r, err)
	telemetry.EndSpan(span, err)
	o.Metrics.DeploymentFinished(string(result.Status))

	if result.Succeeded() {
		r.log.Infof("Deployment of %s succeeded in %s", request.Domain, result.Duration)
	} else {
		r.log.Errorf("Deployment of %s failed in state %s", request.Domain, r.state())
	}

	return result
}

func (o *Orchestrator) stages() []stage {
	return []stage{
		{state: Initializing, run: o.initialize},
		{state: CredentialsReady, run: o.prepareCredentials},
		{state: DatabaseProvisioned, run: o.provisionDatabase},
		{state: FilesystemPrepared, run: o.prepareFilesystem},
		{state: ArchivesUploaded, run: o.uploadArchives},
		{state: CoreInstalled, run: o.installCore},
		{state: PluginsConfigured, run: o.configurePlugins},
		{state: LicenseActivated, run: o.activateLicense},
		{state: Finalized, run: o.finalize},
	}
}

// step performs one unit of work and records its StageResult.
// It returns an error only when the deployment must stop.
func (o *Orchestrator) step(ctx context.Context, r *run, state State, name string, level criticality, fn func(ctx context.Context) error) error {
	logger := r.log.WithField("stage", state)
	started := time.Now()

	err := ctx.Err()
	if err != nil {
		err = deployerr.Wrap(deployerr.KindCancelled, name, err)
	} else {
		err = fn(ctx)
	}

	result := StageResult{
		State:    state,
		Name:     name,
		Duration: Duration(time.Since(started)),
	}

	kind := deployerr.KindOf(err)
	halt := err != nil && (level == mandatory || deployerr.Fatal(kind))

	switch {
	case err == nil:
		result.Status = StageSucceeded
		result.Message = name + " succeeded"
		logger.Info(result.Message)
	case halt:
		result.Status = StageFailed
		result.Kind = kind
		result.Message = name + " failed"
		result.Detail = r.redactor.Redact(err.Error())
		logger.WithField("error_kind", kind).Errorf("%s: %s", result.Message, result.Detail)
	default:
		result.Status = StageFailed
		result.Kind = deployerr.KindBestEffort
		result.Message = name + " failed; continuing"
		result.Detail = r.redactor.Redact(fmt.Sprintf("%s: %s", kind, err))
		logger.Warnf("%s: %s", result.Message, result.Detail)
	}

	r.stages = append(r.stages, result)
	o.Metrics.StageResult(string(state), string(result.Status))

	if halt {
		return err
	}
	return nil
}

func (o *Orchestrator) skip(r *run, state State, name, reason string) {
	result := StageResult{
		State:   state,
		Name:    name,
		Status:  StageSkipped,
		Message: reason,
	}
	r.log.WithField("stage", state).Infof("%s skipped: %s", name, reason)
	r.stages = append(r.stages, result)
	o.Metrics.StageResult(string(state), string(result.Status))
}

func (o *Orchestrator) result(r *run, err error) *Result {
	result := &Result{
		DeploymentID: r.id,
		Domain:       r.request.Domain,
		Stages:       r.stages,
		StartedAt:    r.started,
		Duration:     Duration(time.Since(r.started)),
	}

	if err != nil {
		r.transitions = append(r.transitions, Failed)
		result.Status = StatusFailed
		result.Transitions = r.transitions
		return result
	}

	result.Status = StatusSucceeded
	result.Transitions = r.transitions
	result.SiteURL = r.request.SiteURL()
	result.AdminURL = r.request.AdminURL()
	result.Credentials = &Credentials{
		DatabaseName:     r.databaseName,
		DatabaseUser:     r.databaseUser,
		DatabasePassword: r.credentials.DatabasePassword,
		AdminUser:        r.request.AdminUser,
		AdminPassword:    r.credentials.AdminPassword,
		TablePrefix:      r.credentials.TablePrefix,
	}
	return result
}

func (o *Orchestrator) logger() *log.Entry {
	if o.Log == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return o.Log
}

func stageOutcome(err error) string {
	if err != nil {
		return string(StageFailed)
	}
	return string(StageSucceeded)
}

func stagingDir(request Request, id string) string {
	base := request.StagingDir
	if base == "" {
		base = path.Join(path.Dir(path.Clean(request.Path)), stagingDirName)
	}
	return path.Join(base, id)
}
