package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Restaurant struct {
	ID                uuid.UUID
	Name              string
	TaxRate           pgtype.Numeric
	ServiceChargeRate pgtype.Numeric
	DeliveryFee       pgtype.Numeric
	CreatedAt         time.Time
}

type Staff struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	FullName     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type MenuItem struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Name         string
	Price        pgtype.Numeric
	Station      string
	IsActive     bool
	CreatedAt    time.Time
}

type Driver struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	FullName     string
	Phone        string
	CashInHand   pgtype.Numeric
	CreatedAt    time.Time
}

type DriverShift struct {
	ID            uuid.UUID
	DriverID      uuid.UUID
	OpeningFloat  pgtype.Numeric
	Status        string
	OpenedAt      time.Time
	ClosedAt      pgtype.Timestamptz
	ClosingActual pgtype.Numeric
	Variance      pgtype.Numeric
	ClosedBy      pgtype.UUID
}

type DiningTable struct {
	ID               uuid.UUID
	RestaurantID     uuid.UUID
	TableNumber      int32
	Capacity         int32
	Status           string
	ServerID         pgtype.UUID
	ActiveOrderID    pgtype.UUID
	LastStatusChange time.Time
}

type Order struct {
	ID                 uuid.UUID
	RestaurantID       uuid.UUID
	OrderNumber        string
	OrderType          string
	Status             string
	TableID            pgtype.UUID
	GuestCount         pgtype.Int4
	DriverID           pgtype.UUID
	CustomerPhone      pgtype.Text
	DeliveryAddress    pgtype.Text
	Subtotal           pgtype.Numeric
	TaxAmount          pgtype.Numeric
	ServiceCharge      pgtype.Numeric
	DeliveryFee        pgtype.Numeric
	TotalAmount        pgtype.Numeric
	IsSettledWithRider bool
	CancelReason       pgtype.Text
	CreatedBy          uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	UnitPrice  pgtype.Numeric
	Quantity   int32
	Status     string
	Station    string
	Notes      pgtype.Text
	CreatedAt  time.Time
}

type Payment struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	PaymentMethod  string
	Amount         pgtype.Numeric
	TenderedAmount pgtype.Numeric
	ChangeAmount   pgtype.Numeric
	ProcessedBy    uuid.UUID
	ProcessedAt    time.Time
}

type RiderSettlement struct {
	ID              uuid.UUID
	RestaurantID    uuid.UUID
	DriverID        uuid.UUID
	AmountExpected  pgtype.Numeric
	AmountCollected pgtype.Numeric
	Variance        pgtype.Numeric
	ProcessedBy     uuid.UUID
	CreatedAt       time.Time
}

type SettlementOrder struct {
	SettlementID uuid.UUID
	OrderID      uuid.UUID
	Amount       pgtype.Numeric
}

type DrawerSession struct {
	ID             uuid.UUID
	RestaurantID   uuid.UUID
	OpenedBy       uuid.UUID
	OpeningBalance pgtype.Numeric
	Status         string
	OpenedAt       time.Time
	ClosedAt       pgtype.Timestamptz
	ClosedBy       pgtype.UUID
	ClosingActual  pgtype.Numeric
	ExpectedCash   pgtype.Numeric
	Variance       pgtype.Numeric
	TotalSales     pgtype.Numeric
	TotalPayouts   pgtype.Numeric
}

type LedgerEntry struct {
	ID            uuid.UUID
	SessionID     uuid.UUID
	EntryType     string
	ReferenceType string
	ReferenceID   pgtype.UUID
	AccountID     pgtype.UUID
	Amount        pgtype.Numeric
	Notes         pgtype.Text
	CreatedAt     time.Time
}
