package kv

import "time"

// Clock supplies record timestamps in Unix seconds.
type Clock interface {
	Now() uint64
}

type systemClock struct{}

func (systemClock) Now() uint64 { return uint64(time.Now().Unix()) }
