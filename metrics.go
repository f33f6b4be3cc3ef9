package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "linkedin_mcp"

// 投稿結果のラベル値
const (
	outcomeCreated        = "created"
	outcomeSimulated      = "simulated"
	outcomeAPIError       = "api_error"
	outcomeTransportError = "transport_error"
)

var (
	postsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "posts_total",
		Help:      "LinkedIn post submissions by outcome.",
	}, []string{"outcome"})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "tool_calls_total",
		Help:      "Tool invocations by tool name and result.",
	}, []string{"tool", "result"})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "active_sessions",
		Help:      "Number of open MCP sessions.",
	})
)
