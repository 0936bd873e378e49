package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusNew            = "NEW"
	OrderStatusPreparing      = "PREPARING"
	OrderStatusReady          = "READY"
	OrderStatusOutForDelivery = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      = "DELIVERED"
	OrderStatusPaid           = "PAID"
	OrderStatusCancelled      = "CANCELLED"
)

const (
	ItemStatusPending   = "PENDING"
	ItemStatusFired     = "FIRED"
	ItemStatusPreparing = "PREPARING"
	ItemStatusReady     = "READY"
	ItemStatusServed    = "SERVED"
)

const (
	TableStatusAvailable      = "AVAILABLE"
	TableStatusOccupied       = "OCCUPIED"
	TableStatusPaymentPending = "PAYMENT_PENDING"
	TableStatusDirty          = "DIRTY"
)

const (
	ShiftStatusOpen   = "OPEN"
	ShiftStatusClosed = "CLOSED"
)

const (
	SessionStatusOpen   = "OPEN"
	SessionStatusClosed = "CLOSED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleWaiter  = "WAITER"
	UserRoleKitchen = "KITCHEN"
	UserRoleRider   = "RIDER"
)

const (
	OrderTypeDineIn   = "DINE_IN"
	OrderTypeTakeaway = "TAKEAWAY"
	OrderTypeDelivery = "DELIVERY"
)

const (
	LedgerEntryDebit  = "DEBIT"
	LedgerEntryCredit = "CREDIT"
)

const (
	LedgerRefSale       = "SALE"
	LedgerRefPayout     = "PAYOUT"
	LedgerRefSettlement = "SETTLEMENT"
	LedgerRefFloat      = "FLOAT"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	StationHot      = "HOT"
	StationCold     = "COLD"
	StationGrill    = "GRILL"
	StationBeverage = "BEVERAGE"
	StationDessert  = "DESSERT"
)

const (
	PaymentMethodCash  = "CASH"
	PaymentMethodCard  = "CARD"
	PaymentMethodRaast = "RAAST"
)
