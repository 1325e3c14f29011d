// Package metrics provides Prometheus instrumentation for the routing engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesRelayed counts payloads moved across the boundary, by direction
	// (inbound = customer to agents, outbound = agent to customer).
	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskbridge_messages_relayed_total",
			Help: "Messages relayed across the customer/agent boundary",
		},
		[]string{"direction"},
	)

	// TopicsCreated counts forum topics opened for conversations.
	TopicsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskbridge_topics_created_total",
			Help: "Forum topics created",
		},
	)

	// TopicsRecreated counts self-healing recreations after a dead topic.
	TopicsRecreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskbridge_topics_recreated_total",
			Help: "Forum topics recreated after the bound topic died",
		},
	)

	// FallbackDeliveries counts messages that landed on the group's general
	// surface because no topic could be used.
	FallbackDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deskbridge_fallback_deliveries_total",
			Help: "Deliveries that fell back to the general surface",
		},
	)

	// DeliveryFailures counts terminal delivery failures by classified kind.
	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deskbridge_delivery_failures_total",
			Help: "Terminal delivery failures by transport error kind",
		},
		[]string{"kind"},
	)

	// OpenConversations tracks currently open conversations.
	OpenConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deskbridge_open_conversations",
			Help: "Conversations currently open",
		},
	)
)
