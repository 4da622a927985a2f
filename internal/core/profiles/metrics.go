package profiles

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ensign_profile_cache_lookups",
	Help: "Profile store lookups by key type and outcome",
}, []string{"key", "result"})

// resolutionsCoerced counts registry failures on the name path that were
// collapsed into an unresolved result. Absence does not increment this;
// only genuine lookup failures do.
var resolutionsCoerced = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ensign_resolutions_coerced_total",
	Help: "Name-path registry failures surfaced to callers as not-found",
})

var refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ensign_profile_refreshes",
	Help: "Profile refreshes by status",
}, []string{"status"})

var refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "ensign_profile_refresh_duration",
	Help:    "Time to refresh a profile from the registry",
	Buckets: prometheus.ExponentialBucketsRange(0.001, 30, 20),
})

var refreshesCoalesced = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ensign_profile_refreshes_coalesced_total",
	Help: "Refreshes that shared another in-flight refresh of the same address",
})
