package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vesaa/gridpilot/internal/proxy"
)

// handleSchedulerProxy relays one scheduler exchange between a device and
// its project's upstream endpoint.
//
//	POST /proxy/:project/scheduler
//
// On success the upstream's status code and body are returned to the
// device byte-for-byte; recording the dispatched work is a side effect
// that never changes the answer.
func (s *Server) handleSchedulerProxy(c *gin.Context) {
	projectID := c.Param("project")
	userAgent := c.GetHeader("User-Agent")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "reading request body failed")
		return
	}

	resp, obs, err := s.relay.Forward(c.Request.Context(), projectID, userAgent, body)
	if err != nil {
		switch {
		case errors.Is(err, proxy.ErrProjectNotFound):
			c.String(http.StatusNotFound, "Project not found")
		case errors.Is(err, proxy.ErrMissingUserAgent):
			c.String(http.StatusBadRequest, "No user-agent provided")
		case errors.Is(err, proxy.ErrMalformedRequest):
			c.String(http.StatusBadRequest, "Malformed scheduler request")
		case errors.Is(err, proxy.ErrUpstreamUnreachable):
			s.log.Error().Err(err).Str("project", projectID).Msg("upstream unreachable")
			c.String(http.StatusGatewayTimeout, "Upstream scheduler unreachable")
		default:
			s.log.Error().Err(err).Str("project", projectID).Msg("scheduler relay failed")
			c.String(http.StatusInternalServerError, "Scheduler relay failed")
		}
		return
	}

	s.log.Info().
		Str("project", projectID).
		Int("upstream_status", resp.StatusCode).
		Int("units_recorded", obs.UnitsRecorded).
		Int("status_updates", obs.StatusUpdates).
		Msg("scheduler exchange relayed")

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/xml"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}

// handleProxyRoot serves the per-project landing page. The only thing a
// device needs from it is the boinc_scheduler link tag pointing at the
// gateway's own scheduler endpoint.
//
//	GET /proxy/:project/
func (s *Server) handleProxyRoot(c *gin.Context) {
	projectID := c.Param("project")
	if _, ok := s.reg.Lookup(projectID); !ok {
		c.String(http.StatusNotFound, "Project not found")
		return
	}

	schedulerURL := s.reg.SchedulerProxyURL(projectID)
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
    <head>
        <meta>
            <!--<scheduler>%s</scheduler>-->
            <link rel="boinc_scheduler" href="%s">
        </meta>
    </head>
</html>`, schedulerURL, schedulerURL)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}
