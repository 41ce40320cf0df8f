package web

import (
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// SettingsInfo holds safe-to-display runtime configuration for the
// settings/about modal
type SettingsInfo struct {
	// version & build info
	Version   string
	StartTime time.Time

	// store settings
	StoreKind  string // "remote" or "local"
	BackendURL string // remote backend URL, no credentials
	DBPath     string // local sqlite path

	// web settings
	WebAddress  string
	WebHostname string
	AuthEnabled bool

	// refresh settings
	RefreshEnabled bool
	RefreshSpec    string

	// notification summary (counts, no secrets)
	NotifyDestCount int

	// logging settings
	LoggingEnabled bool
	DebugMode      bool
	LogFilePath    string

	// populated on demand for the modal
	Runtime RuntimeInfo
}

// RuntimeInfo is a point-in-time host snapshot shown in the about modal
type RuntimeInfo struct {
	MemUsedPercent float64
	MemTotalMB     uint64
	LoadAvg1       float64
	Uptime         time.Duration
}

// collectRuntimeInfo gathers host stats, best effort - failures leave
// zero values and are only logged
func collectRuntimeInfo() RuntimeInfo {
	info := RuntimeInfo{}

	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemUsedPercent = vm.UsedPercent
		info.MemTotalMB = vm.Total / 1024 / 1024
	} else {
		log.Printf("[WARN] failed to get memory info: %v", err)
	}

	if avg, err := load.Avg(); err == nil {
		info.LoadAvg1 = avg.Load1
	} else {
		log.Printf("[WARN] failed to get load average: %v", err)
	}

	return info
}
