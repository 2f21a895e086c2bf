package orders

import "strconv"

const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status.changed"
	TopicOpinionAdded       = "order.opinion.added"
)

func Topics() []string {
	return []string{TopicOrderCreated, TopicOrderStatusChanged, TopicOpinionAdded}
}

// Partition key = order id, so all events of one order keep their order.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }
