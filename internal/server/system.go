package server

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// systemStatusResponse is the process/host resource snapshot (spec §10,
// ambient operational surface — no new business semantics).
type systemStatusResponse struct {
	Status     string  `json:"status"`
	CPUPercent float64 `json:"cpuPercent"`
	RAMPercent float64 `json:"ramPercent"`
}

// handleSystemStatus implements GET /api/system/status, grounded on the
// teacher's getSystemStats (100ms CPU sample to stay responsive).
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := s.getSystemStats()
	writeJSON(w, http.StatusOK, systemStatusResponse{
		Status:     "healthy",
		CPUPercent: cpuPercent,
		RAMPercent: ramPercent,
	})
}

func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read cpu percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read memory statistics")
		return cpuAvg(cpuPercent), 0
	}

	return cpuAvg(cpuPercent), memStat.UsedPercent
}

func cpuAvg(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return samples[0]
}
