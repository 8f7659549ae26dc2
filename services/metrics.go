package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var contentCreatedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ephembbs_content_created_total",
	Help: "Number of content items created",
}, []string{"type"})

var contentSweptCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ephembbs_content_swept_total",
	Help: "Number of content items removed after expiry, including descendants",
})

var flagFiledCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ephembbs_flags_filed_total",
	Help: "Number of flags filed or refiled",
})

var quarantineCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ephembbs_quarantine_transitions_total",
	Help: "Number of quarantine state changes",
}, []string{"source"})

var popupRejectCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ephembbs_popup_replies_rejected_total",
	Help: "Number of replies rejected because the popup thread was closed",
}, []string{"reason"})

var restrictionBlockCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ephembbs_restriction_blocks_total",
	Help: "Number of writes blocked by a mute or ban",
}, []string{"type"})

var pollVoteCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ephembbs_poll_votes_total",
	Help: "Number of votes cast or changed",
})

var notifyErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ephembbs_notification_errors_total",
	Help: "Number of best-effort notification failures",
}, []string{"stage"})
