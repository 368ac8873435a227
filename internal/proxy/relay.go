// Package proxy implements the per-project scheduler relay. It forwards a
// device's scheduler request to the project's upstream endpoint unchanged,
// relays the answer back byte-for-byte, and as a best-effort side effect
// correlates the reply sections into durable workunit history.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vesaa/gridpilot/internal/config"
	"github.com/vesaa/gridpilot/internal/models"
	"github.com/vesaa/gridpilot/internal/protocol"
	"github.com/vesaa/gridpilot/internal/store"
)

// Routing errors terminate the exchange before any upstream contact.
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrMissingUserAgent = errors.New("no user-agent provided")
	ErrMalformedRequest = errors.New("malformed scheduler request")
	// ErrUpstreamUnreachable is a transport-level failure reaching the
	// upstream scheduler, distinct from the upstream answering with an
	// error status (which is relayed verbatim).
	ErrUpstreamUnreachable = errors.New("upstream scheduler unreachable")
)

// Response is the device-facing answer: the upstream's status and body,
// untouched.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Observation is the diagnostic outcome of the best-effort persistence pass
// that runs after the response has already been determined. Its errors
// never affect the Response.
type Observation struct {
	StatusUpdates    int
	StatusMisses     int
	UnitsRecorded    int
	UnitsSkipped     int
	VersionsRecorded int
	VersionsSkipped  int
	Errors           []error
}

func (o *Observation) fail(err error) {
	o.Errors = append(o.Errors, err)
}

// Relay is the stateful per-project scheduler proxy. Safe for concurrent
// use; all shared state lives in the store.
type Relay struct {
	reg    *config.Registry
	store  *store.Store
	client *http.Client
	log    zerolog.Logger
	now    func() time.Time
}

// NewRelay builds a relay whose upstream calls are bounded by timeout.
func NewRelay(reg *config.Registry, st *store.Store, timeout time.Duration, log zerolog.Logger) *Relay {
	return &Relay{
		reg:    reg,
		store:  st,
		client: &http.Client{Timeout: timeout},
		log:    log,
		now:    time.Now,
	}
}

// Forward runs one scheduler exchange for projectID.
//
// The inbound result-state reports are applied to the store, the raw body
// is forwarded upstream with the original User-Agent, and the upstream's
// status and body come back as the Response regardless of what the
// correlation pass manages to persist. The Observation describes that
// pass; it is non-nil whenever the Response is.
func (r *Relay) Forward(ctx context.Context, projectID, userAgent string, body []byte) (*Response, *Observation, error) {
	project, ok := r.reg.Lookup(projectID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrProjectNotFound, projectID)
	}
	if userAgent == "" {
		return nil, nil, ErrMissingUserAgent
	}

	var req protocol.SchedulerRequest
	if err := protocol.Decode(body, &req); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	obs := &Observation{}

	// The device's routine reporting updates history even when the
	// upstream leg fails later.
	for _, state := range req.Results {
		outcome, err := r.store.SetStatus(projectID, state.Name, state.State)
		switch {
		case err != nil:
			obs.fail(fmt.Errorf("updating status of %q: %w", state.Name, err))
		case outcome == store.StatusNoSuchUnit:
			obs.StatusMisses++
			r.log.Debug().Str("project", projectID).Str("result", state.Name).
				Msg("status report for unrecorded workunit ignored")
		default:
			obs.StatusUpdates++
		}
	}

	resp, err := r.callUpstream(ctx, project.SchedulerURL, userAgent, body)
	if err != nil {
		return nil, obs, err
	}

	if resp.StatusCode == http.StatusOK {
		r.observe(projectID, req.HostInfo.HostCPID, resp.Body, obs)
	}

	if len(obs.Errors) > 0 {
		r.log.Warn().Str("project", projectID).Errs("errors", obs.Errors).
			Msg("scheduler reply recorded only partially")
	}
	return resp, obs, nil
}

func (r *Relay) callUpstream(ctx context.Context, url, userAgent string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}
	defer resp.Body.Close()

	replyBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading reply: %v", ErrUpstreamUnreachable, err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        replyBody,
	}, nil
}

// observe decodes a successful upstream reply and persists the correlated
// records. Everything in here is best-effort: the device already has its
// answer.
func (r *Relay) observe(projectID, cpid string, replyBody []byte, obs *Observation) {
	var reply protocol.SchedulerReply
	if err := protocol.Decode(protocol.RepairAmpersands(replyBody), &reply); err != nil {
		obs.fail(fmt.Errorf("decoding upstream reply: %w", err))
		return
	}

	dispatched := r.now().Unix()
	for _, wu := range reply.WorkUnits {
		res, ok := matchResult(reply.Results, wu.Name)
		if !ok {
			obs.UnitsSkipped++
			continue
		}
		record := &models.WorkUnit{
			CPID:           cpid,
			ResultName:     res.Name,
			Name:           wu.Name,
			Project:        projectID,
			Status:         int64(models.StatusAssigned),
			AppName:        wu.AppName,
			RscFpopsEst:    wu.RscFpopsEst,
			RscFpopsBound:  wu.RscFpopsBound,
			RscMemoryBound: wu.RscMemoryBound,
			RscDiskBound:   wu.RscDiskBound,
			Platform:       res.Platform,
			VersionNum:     res.VersionNum,
			PlanClass:      res.PlanClass,
			Timestamp:      dispatched,
		}
		if err := r.store.InsertWorkUnit(record); err != nil {
			obs.fail(fmt.Errorf("recording workunit %q: %w", res.Name, err))
			continue
		}
		obs.UnitsRecorded++
	}

	for _, av := range reply.AppVersions {
		app, ok := matchApp(reply.Apps, av.AppName)
		if !ok {
			obs.VersionsSkipped++
			continue
		}
		record := &models.AppVersion{
			Project:          projectID,
			AppName:          app.Name,
			UserFriendlyName: app.UserFriendlyName,
			Version:          av.VersionNum,
			Platform:         av.Platform,
			PlanClass:        av.PlanClass,
		}
		if err := r.store.InsertAppVersion(record); err != nil {
			obs.fail(fmt.Errorf("recording app version %q: %w", app.Name, err))
			continue
		}
		obs.VersionsRecorded++
	}
}

// matchResult finds the first result referencing the named workunit.
func matchResult(results []protocol.SchedulerResult, wuName string) (protocol.SchedulerResult, bool) {
	for _, res := range results {
		if res.WUName == wuName {
			return res, true
		}
	}
	return protocol.SchedulerResult{}, false
}

// matchApp finds the first app descriptor with the given name.
func matchApp(apps []protocol.SchedulerApp, name string) (protocol.SchedulerApp, bool) {
	for _, app := range apps {
		if app.Name == name {
			return app, true
		}
	}
	return protocol.SchedulerApp{}, false
}
