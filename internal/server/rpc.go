package server

import (
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/vesaa/gridpilot/internal/config"
	"github.com/vesaa/gridpilot/internal/planner"
	"github.com/vesaa/gridpilot/internal/protocol"
)

// handleAccountRPC is the account-manager contact endpoint.
//
//	POST /rpc.php
//
// The claimed account-manager name doubles as a weak shared secret; a
// mismatch is rejected before any planning happens.
func (s *Server) handleAccountRPC(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "reading request body failed")
		return
	}

	var req protocol.AccountRequest
	if err := protocol.Decode(body, &req); err != nil {
		c.String(http.StatusBadRequest, "Malformed account request")
		return
	}

	if req.Name != s.reg.WeakAuth {
		c.String(http.StatusForbidden, "Invalid name")
		return
	}

	plan, err := planner.ComputePriorities(s.reg, req.HostInfo, s.store)
	if err != nil {
		s.log.Error().Err(err).Str("cpid", req.HostInfo.HostCPID).
			Msg("priority computation failed")
		c.String(http.StatusInternalServerError, "Priority computation failed")
		return
	}

	reply := BuildAccountReply(s.reg, plan)
	out, err := protocol.Encode(reply, "acct_mgr_reply")
	if err != nil {
		c.String(http.StatusInternalServerError, "Encoding the XML")
		return
	}
	c.Data(http.StatusOK, "text/xml", out)
}

// BuildAccountReply renders a planner result as the account-manager reply.
// Every registered project gets exactly one entry; projects the planner
// excluded come back with priority 0 and the detach flag set so the device
// drops them.
func BuildAccountReply(reg *config.Registry, plan planner.Result) protocol.AccountReply {
	ids := make([]string, 0, len(reg.Projects))
	for id := range reg.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	accounts := make([]protocol.Account, 0, len(ids))
	for _, id := range ids {
		project := reg.Projects[id]
		priority := plan[id]
		detach := 0
		if priority == 0 {
			detach = 1
		}
		accounts = append(accounts, protocol.Account{
			URL:           reg.ProxyURL(id),
			URLSignature:  project.URLSignature,
			Authenticator: project.Authenticator,
			ResourceShare: priority,
			Detach:        detach,
		})
	}

	return protocol.AccountReply{
		Name:       reg.AccountManagerName,
		SigningKey: reg.SigningKey,
		Accounts:   accounts,
	}
}

// handleProjectConfig serves the static per-project configuration
// descriptor a device fetches before attaching.
//
//	GET /get_project_config.php
func (s *Server) handleProjectConfig(c *gin.Context) {
	out, err := protocol.Encode(protocol.ProjectConfig{
		Name:            s.reg.AccountManagerName,
		MinPasswdLength: 1,
	}, "project_config")
	if err != nil {
		c.String(http.StatusInternalServerError, "Encoding the XML")
		return
	}
	c.Data(http.StatusOK, "text/xml", out)
}
