package deployclient

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/pressops/wpdeploy/pkg/conftools"
	"github.com/pressops/wpdeploy/pkg/pipeline"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type TemplateVariables map[string]interface{}

// Orchestrator runs a single deployment to completion.
type Orchestrator interface {
	Deploy(ctx context.Context, request pipeline.Request) *pipeline.Result
}

type Deployer struct {
	Orchestrator Orchestrator
}

// Prepare templates and decodes every request document named in cfg.
func Prepare(cfg *Config) ([]pipeline.Request, error) {
	var err error
	templateVariables := make(TemplateVariables)

	err = cfg.Validate()
	if err != nil {
		return nil, ErrorWrap(ExitInvocationFailure, err)
	}

	if len(cfg.VariablesFile) > 0 {
		templateVariables, err = templateVariablesFromFile(cfg.VariablesFile)
		if err != nil {
			return nil, Errorf(ExitInvocationFailure, "load template variables: %s", err)
		}
	}

	if len(cfg.Variables) > 0 {
		templateOverrides := templateVariablesFromSlice(cfg.Variables)
		for key, val := range templateOverrides {
			if _, ok := templateVariables[key]; ok {
				log.Warnf("Overwriting template variable '%s'", key)
			}
			log.Debugf("Setting template variable '%s'", key)
			templateVariables[key] = val
		}
	}

	requests := make([]pipeline.Request, 0)

	for _, path := range cfg.Request {
		documents, err := MultiDocumentFileAsJSON(path, templateVariables)
		if err != nil {
			return nil, ErrorWrap(ExitTemplateError, err)
		}
		for i, document := range documents {
			request, err := DecodeRequest(document)
			if err != nil {
				return nil, Errorf(ExitTemplateError, "%s: document %d: %s", path, i+1, err)
			}
			requests = append(requests, request)
		}
	}

	if len(requests) == 0 {
		return nil, Errorf(ExitInvocationFailure, "no site requests found in %s", strings.Join(cfg.Request, ", "))
	}

	domains := make(map[string]bool, len(requests))
	for i, request := range requests {
		err = request.Validate()
		if err != nil {
			return nil, Errorf(ExitInvocationFailure, "request %d: %s", i+1, err)
		}
		domain := strings.ToLower(request.Domain)
		if domains[domain] {
			return nil, Errorf(ExitInvocationFailure, "domain '%s' is requested more than once", request.Domain)
		}
		domains[domain] = true
	}

	log.Infof("Prepared %d site request(s)", len(requests))

	return requests, nil
}

// Deploy runs every request, at most cfg.Parallel at a time, each bounded by cfg.Timeout.
// Results are returned in request order; the error summarizes any failures.
func (d *Deployer) Deploy(ctx context.Context, cfg *Config, requests []pipeline.Request) ([]*pipeline.Result, error) {
	results := make([]*pipeline.Result, len(requests))

	group := &errgroup.Group{}
	group.SetLimit(max(cfg.Parallel, 1))

	for i, request := range requests {
		group.Go(func() error {
			deployCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			results[i] = d.Orchestrator.Deploy(deployCtx, request)
			logResult(results[i])
			return nil
		})
	}

	_ = group.Wait()

	return results, ErrorStatus(results)
}

// PrintRequests writes the requests as JSON with every secret masked.
func PrintRequests(w io.Writer, requests []pipeline.Request) error {
	masked := make([]pipeline.Request, 0, len(requests))
	for _, request := range requests {
		masked = append(masked, MaskRequest(request))
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(masked)
}

func MaskRequest(request pipeline.Request) pipeline.Request {
	mask := func(s *string) {
		if len(*s) > 0 {
			*s = conftools.Redacted
		}
	}
	mask(&request.DatabasePassword)
	mask(&request.AdminPassword)
	mask(&request.ElementorProKey)
	return request
}

func logResult(result *pipeline.Result) {
	logger := log.WithField("deployment_id", result.DeploymentID)
	if result.Succeeded() {
		logger.Infof("Deployment of %s succeeded: %s", result.Domain, result.AdminURL)
		return
	}
	if failure := result.Failure(); failure != nil {
		logger.Errorf("Deployment of %s failed at %s: %s", result.Domain, failure.Name, failure.Detail)
		return
	}
	logger.Errorf("Deployment of %s failed", result.Domain)
}
