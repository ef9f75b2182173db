package engine

import "time"

// Clock permite trocar o relógio nos testes
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
