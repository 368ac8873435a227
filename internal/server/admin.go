package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// handleDeviceWorkUnits returns the dispatch history for one device.
//
//	GET /api/devices/:cpid/workunits?since=<unix-seconds>
func (s *Server) handleDeviceWorkUnits(c *gin.Context) {
	cpid := c.Param("cpid")

	var since int64
	if raw := c.Query("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp"})
			return
		}
		since = v
	}

	units, err := s.store.ListSince(cpid, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cpid": cpid, "count": len(units), "data": units})
}

// handleStatus reports gateway host diagnostics for the operator.
//
//	GET /api/status
func (s *Server) handleStatus(c *gin.Context) {
	info, err := host.Info()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cpuPct := 0.0
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		cpuPct = pcts[0]
	}
	memPct := 0.0
	if vm, err := mem.VirtualMemory(); err == nil {
		memPct = vm.UsedPercent
	}

	c.JSON(http.StatusOK, gin.H{
		"hostname":       info.Hostname,
		"os":             info.OS,
		"platform":       info.Platform,
		"uptime_seconds": info.Uptime,
		"cpu_usage":      cpuPct,
		"mem_usage":      memPct,
		"projects":       len(s.reg.Projects),
		"time":           time.Now().UTC(),
	})
}
