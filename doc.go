// Package hotqueue provides a simple FIFO message queue stored in a Redis list.
//
// It uses:
// - one Redis List per queue, keyed "<prefix>:<name>"
// - RPUSH to enqueue and LPOP/BLPOP to dequeue
// - a pluggable Codec (JSON by default) to turn messages into bytes
package hotqueue
