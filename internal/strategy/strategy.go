// Package strategy holds signal generators. A Strategy inspects the
// bar history of one instrument after each closed bar and proposes at
// most one candidate signal; candidates then go through the decision
// engine before anything is published.
package strategy

import "github.com/FIREguardSPB/spatial-pinwheel/internal/model"

// Strategy is implemented by all signal generators.
type Strategy interface {
	// Name returns the unique strategy identifier stamped onto
	// generated signals.
	Name() string

	// OnBar is called once per closed bar with the full history
	// snapshot, oldest first and ending with the bar that just closed.
	// Returns nil when nothing is proposed.
	OnBar(instrument string, bars []model.Bar) *model.Signal
}
