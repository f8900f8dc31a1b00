package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STORAGE - Trade log, snapshots and value history via GORM
// ═══════════════════════════════════════════════════════════════════════════════
//
// SQLite by default, Postgres when the DSN says so. Monetary values are
// stored as strings to keep decimal precision across drivers.
//
// ═══════════════════════════════════════════════════════════════════════════════

// TradeRow is one executed trade.
type TradeRow struct {
	ID              uint      `gorm:"primaryKey"`
	Timestamp       time.Time `gorm:"index"`
	Symbol          string    `gorm:"index"`
	Action          string
	Price           string
	Quantity        string
	Commission      string
	SlippageCost    string
	CashDelta       string
	PortfolioBefore string
	PortfolioAfter  string
	Reason          string
	CreatedAt       time.Time
}

// Snapshot is the latest portfolio state, one row per save. Positions are
// serialized as JSON; read back only for display, never resumed.
type Snapshot struct {
	ID             uint      `gorm:"primaryKey"`
	Timestamp      time.Time `gorm:"index"`
	Value          string
	Cash           string
	PositionsValue string
	OpenPositions  int
	Positions      string
	DailyPnLPct    string
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	CreatedAt      time.Time
}

// HistoryPoint is one persisted point of the value curve.
type HistoryPoint struct {
	ID        uint      `gorm:"primaryKey"`
	Timestamp time.Time `gorm:"index"`
	Value     string
	Cash      string
}

// Database wraps the GORM connection.
type Database struct {
	db *gorm.DB
}

// New opens the database behind the DSN and migrates the schema.
// "postgres://" and "host=" DSNs go to Postgres, everything else is treated
// as a SQLite file path.
func New(dsn string) (*Database, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "host=") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&TradeRow{}, &Snapshot{}, &HistoryPoint{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	log.Info().Str("dsn", dsn).Msg("💾 Database ready")
	return &Database{db: db}, nil
}

// SaveTrade persists one executed trade.
func (d *Database) SaveTrade(t types.Trade) error {
	row := TradeRow{
		Timestamp:       t.Timestamp,
		Symbol:          t.Symbol,
		Action:          string(t.Action),
		Price:           t.Price.String(),
		Quantity:        t.Quantity.String(),
		Commission:      t.Commission.String(),
		SlippageCost:    t.SlippageCost.String(),
		CashDelta:       t.CashDelta.String(),
		PortfolioBefore: t.PortfolioBefore.String(),
		PortfolioAfter:  t.PortfolioAfter.String(),
		Reason:          t.Reason,
	}
	return d.db.Create(&row).Error
}

// SaveSnapshot persists the current portfolio state.
func (d *Database) SaveSnapshot(p types.ValuePoint, positions []types.Position, total, wins, losses int) error {
	encoded, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}
	row := Snapshot{
		Timestamp:      p.Timestamp,
		Value:          p.Value.String(),
		Cash:           p.Cash.String(),
		PositionsValue: p.PositionsValue.String(),
		OpenPositions:  p.OpenPositions,
		Positions:      string(encoded),
		DailyPnLPct:    p.DailyPnLPct.String(),
		TotalTrades:    total,
		WinningTrades:  wins,
		LosingTrades:   losses,
	}
	return d.db.Create(&row).Error
}

// SaveHistory appends the given value points.
func (d *Database) SaveHistory(points []types.ValuePoint) error {
	if len(points) == 0 {
		return nil
	}
	rows := make([]HistoryPoint, len(points))
	for i, p := range points {
		rows[i] = HistoryPoint{
			Timestamp: p.Timestamp,
			Value:     p.Value.String(),
			Cash:      p.Cash.String(),
		}
	}
	return d.db.Create(&rows).Error
}

// RecentTrades returns the last n trades, newest first.
func (d *Database) RecentTrades(n int) ([]TradeRow, error) {
	var rows []TradeRow
	err := d.db.Order("timestamp desc").Limit(n).Find(&rows).Error
	return rows, err
}

// LatestSnapshot returns the most recent snapshot, if any. Display only:
// every run starts from a fresh ledger regardless of what is stored here.
func (d *Database) LatestSnapshot() (*Snapshot, error) {
	var row Snapshot
	err := d.db.Order("timestamp desc").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Close releases the underlying connection.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
