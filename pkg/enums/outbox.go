package enums

import "fmt"

// OutboxAggregateType identifies the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregateProduct             OutboxAggregateType = "product"
	AggregateClientPrice         OutboxAggregateType = "client_price"
	AggregateUserProfile         OutboxAggregateType = "user_profile"
	AggregateRegistrationRequest OutboxAggregateType = "registration_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateProduct,
	AggregateClientPrice,
	AggregateUserProfile,
	AggregateRegistrationRequest,
}

// IsValid reports whether the value is a known aggregate type.
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

// OutboxEventType names a domain event published through the outbox.
type OutboxEventType string

const (
	EventPriceChanged         OutboxEventType = "price.changed"
	EventClientPricesAdjusted OutboxEventType = "client_prices.bulk_adjusted"
	EventRegistrationApproved OutboxEventType = "registration.approved"
	EventRegistrationRejected OutboxEventType = "registration.rejected"
	EventAccountSuspended     OutboxEventType = "account.suspended"
	EventAccountReactivated   OutboxEventType = "account.reactivated"
	EventAccountPreAuthorized OutboxEventType = "account.pre_authorized"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPriceChanged,
	EventClientPricesAdjusted,
	EventRegistrationApproved,
	EventRegistrationRejected,
	EventAccountSuspended,
	EventAccountReactivated,
	EventAccountPreAuthorized,
}

// IsValid reports whether the value is a known event type.
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
