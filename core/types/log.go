package types

// Log is a single LOG0..LOG4 event emitted during execution.
type Log struct {
	Address Address
	Topics  []Hash
	Data    []byte

	// Depth is the call depth at which the log was emitted.
	Depth int
	// Index is the log's position within the transaction.
	Index uint
}
