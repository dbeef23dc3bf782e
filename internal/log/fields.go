package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldHouseholdID = "household_id"
	FieldOwnerID     = "owner_id"
	FieldMonth       = "month"
	FieldBillID      = "bill_id"
	FieldLoanID      = "loan_id"
	FieldPaymentID   = "payment_id"
	FieldAmountCents = "amount_cents"
	FieldCurrency    = "currency"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentStorage    = "storage"
	ComponentBills      = "bills"
	ComponentLoans      = "loans"
	ComponentSavings    = "savings"
	ComponentSettlement = "settlement"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
)
