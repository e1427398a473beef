package kv

// The schema will define how to store and retrieve data from the db. We can
// prefix certain values, such as input records with their engine id and
// big-endian input number, for prefix-wide scans across the underlying
// BoltDB buckets when filtering data. That layout makes "the next input for
// engine E" a single seek rather than a table scan.
var (
	enginesBucket       = []byte("engines")
	inputsBucket        = []byte("inputs")
	worldsBucket        = []byte("worlds")
	mapsBucket          = []byte("maps")
	playersBucket       = []byte("players")
	locationsBucket     = []byte("locations")
	conversationsBucket = []byte("conversations")
	membersBucket       = []byte("conversation-members")
	messagesBucket      = []byte("messages")
	agentsBucket        = []byte("agents")
	memoriesBucket      = []byte("memories")
	tasksBucket         = []byte("scheduled-tasks")

	// Indices buckets.
	inputIDIndicesBucket = []byte("input-id-indices")
)
