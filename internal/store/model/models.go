package model

import "gorm.io/datatypes"

// OrderOp distinguishes the two venue operations recorded per attempt.
type OrderOp string

const (
	OpOpen  OrderOp = "open"
	OpClose OrderOp = "close"
)

// OrderEventModel records every order submission attempt, accepted or
// rejected, so partial multi-order failure is observable after the fact and
// not just a line in the log.
type OrderEventModel struct {
	ID        int64          `gorm:"column:id;primaryKey"`
	CycleID   string         `gorm:"column:cycle_id;index"`
	Op        OrderOp        `gorm:"column:op"`
	Symbol    string         `gorm:"column:symbol"`
	Direction string         `gorm:"column:direction"`
	Volume    float64        `gorm:"column:volume"`
	Price     float64        `gorm:"column:price"`
	Ticket    int64          `gorm:"column:ticket"`
	Retcode   int            `gorm:"column:retcode"`
	Comment   string         `gorm:"column:comment"`
	Raw       datatypes.JSON `gorm:"column:raw"`
	CreatedAt int64          `gorm:"column:created_at"`
}

func (OrderEventModel) TableName() string { return "order_events" }
