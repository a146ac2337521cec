package domain

import "time"

// Direction of a stock movement: Distribute sends stock to a
// hospital, Receive takes stock in from a supplier.
type Direction string

const (
	Distribute Direction = "Distribute"
	Receive    Direction = "Receive"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == Distribute || d == Receive
}

type Transaction struct {
	ID               int       `json:"id"`
	ItemCode         string    `json:"item_code"`
	CounterpartyCode string    `json:"counterparty_code"`
	Direction        Direction `json:"direction"`
	Quantity         int       `json:"quantity"`
	Timestamp        time.Time `json:"timestamp"`
}
