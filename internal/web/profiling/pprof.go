// Package profiling mounts the pprof endpoints of the documentation server.
//
// The endpoints expose goroutine stacks and heap contents. They are off by
// default and sit behind the same bearer authentication as /docs.
package profiling

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"

	"github.com/fielddoc/fielddoc/internal/web/response"
)

// Config holds profiling configuration
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// Path is the URL path prefix for profiling endpoints (default: "/debug/pprof")
	Path string `mapstructure:"path"`

	// BlockRate sets the block profiling rate (0 = disabled)
	BlockRate int `mapstructure:"block_rate"`

	// MutexFraction sets the mutex profiling fraction (0 = disabled)
	MutexFraction int `mapstructure:"mutex_fraction"`
}

// DefaultConfig returns default profiling configuration
func DefaultConfig() Config {
	return Config{Path: "/debug/pprof"}
}

// Mount registers the pprof routes and a /stats summary under config.Path,
// wrapping each with wrap when it is not nil.
func Mount(router chi.Router, config Config, wrap func(http.Handler) http.Handler) {
	if !config.Enabled {
		return
	}
	if config.Path == "" {
		config.Path = DefaultConfig().Path
	}

	runtime.SetBlockProfileRate(config.BlockRate)
	runtime.SetMutexProfileFraction(config.MutexFraction)

	router.Route(config.Path, func(r chi.Router) {
		if wrap != nil {
			r.Use(wrap)
		}
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		r.Get("/stats", StatsHandler)

		for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			r.Handle("/"+name, pprof.Handler(name))
		}
	})
}

// RuntimeStats summarizes the process.
type RuntimeStats struct {
	Goroutines int         `json:"goroutines"`
	Memory     MemoryStats `json:"memory"`
	CPU        CPUStats    `json:"cpu"`
}

// MemoryStats is a subset of runtime.MemStats.
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

type CPUStats struct {
	NumCPU     int   `json:"num_cpu"`
	NumCgoCall int64 `json:"num_cgo_call"`
}

// ReadStats returns current runtime statistics
func ReadStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return RuntimeStats{
		Goroutines: runtime.NumGoroutine(),
		Memory: MemoryStats{
			Alloc:      m.Alloc,
			TotalAlloc: m.TotalAlloc,
			Sys:        m.Sys,
			NumGC:      m.NumGC,
		},
		CPU: CPUStats{
			NumCPU:     runtime.NumCPU(),
			NumCgoCall: runtime.NumCgoCall(),
		},
	}
}

// StatsHandler serves ReadStats as JSON.
func StatsHandler(w http.ResponseWriter, r *http.Request) {
	response.RenderJSON(w, http.StatusOK, ReadStats())
}
