package portfolio

import (
	"github.com/shopspring/decimal"

	"github.com/web3guy0/tradesim/types"
)

// View is a read-only snapshot of the ledger handed to strategy callbacks.
// Strategies can inspect state but never mutate it.
type View struct {
	Cash           decimal.Decimal
	Value          decimal.Decimal
	InitialCapital decimal.Decimal
	Positions      map[string]types.Position
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
}

// HasPosition reports whether a position is open for symbol.
func (v View) HasPosition(symbol string) bool {
	_, ok := v.Positions[symbol]
	return ok
}

// ViewAt builds a read-only snapshot valued at the given prices.
func (l *Ledger) ViewAt(prices map[string]decimal.Decimal) View {
	l.mu.RLock()
	defer l.mu.RUnlock()

	positions := make(map[string]types.Position, len(l.positions))
	for sym, pos := range l.positions {
		positions[sym] = *pos
	}

	return View{
		Cash:           l.cash,
		Value:          l.valueLocked(prices),
		InitialCapital: l.cfg.InitialCapital,
		Positions:      positions,
		TotalTrades:    l.totalTrades,
		WinningTrades:  l.winningTrades,
		LosingTrades:   l.losingTrades,
	}
}
