// Package reference produces the human-readable identifiers printed on
// customer confirmations and work-order reports.
package reference

import (
	"fmt"
	"math/rand"
	"time"
)

// Known prefixes.
const (
	AppointmentPrefix = "RDV"
	WorkOrderPrefix   = "INT"
)

// Generator builds references of the form <PREFIX>-<millisecond epoch>-<0-999>,
// e.g. RDV-1716825600123-47. The random suffix is small, so two references
// generated in the same millisecond can collide; the database unique index on
// the reference column is the backstop, not this generator.
type Generator struct {
	Prefix string
	now    func() time.Time
	intn   func(n int) int
}

func NewGenerator(prefix string) *Generator {
	return &Generator{
		Prefix: prefix,
		now:    time.Now,
		intn:   rand.Intn,
	}
}

func (g *Generator) New() string {
	now := time.Now
	if g.now != nil {
		now = g.now
	}
	intn := rand.Intn
	if g.intn != nil {
		intn = g.intn
	}
	return fmt.Sprintf("%s-%d-%d", g.Prefix, now().UnixMilli(), intn(1000))
}
