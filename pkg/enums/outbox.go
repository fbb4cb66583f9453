package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateBid          OutboxAggregateType = "bid"
	AggregateCMRGroup     OutboxAggregateType = "cmr_group"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateBid,
	AggregateCMRGroup,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventBidSubmitted         OutboxEventType = "bid_submitted"
	EventBidAccepted          OutboxEventType = "bid_accepted"
	EventBidRejected          OutboxEventType = "bid_rejected"
	EventOrderStatusChanged   OutboxEventType = "order_status_changed"
	EventOrderStatusOverride  OutboxEventType = "order_status_override"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
	EventCMRGroupCreated      OutboxEventType = "cmr_group_created"
	EventCMRStopCompleted     OutboxEventType = "cmr_stop_completed"
	EventCMRGroupCompleted    OutboxEventType = "cmr_group_completed"
	EventCMRDocumentMerged    OutboxEventType = "cmr_document_merged"
	EventNotificationRequired OutboxEventType = "notification_required"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBidSubmitted,
	EventBidAccepted,
	EventBidRejected,
	EventOrderStatusChanged,
	EventOrderStatusOverride,
	EventOrderCancelled,
	EventCMRGroupCreated,
	EventCMRStopCompleted,
	EventCMRGroupCompleted,
	EventCMRDocumentMerged,
	EventNotificationRequired,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
