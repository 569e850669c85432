package orders

import "strconv"

const (
	// TopicDeskEvents carries bus envelopes between desk instances.
	TopicDeskEvents = "economato.desk.events"
)

// Partition key = entity id, so every event about one order keeps its order.
func PartitionKey(entityID string) []byte { return []byte(entityID) }

func EntityID(orderID int) string { return "order:" + strconv.Itoa(orderID) }
