// Package engine runs encode work on a bounded pool of goroutines shared
// by the batch encoder and streaming jobs.
package engine
