package constants

// Frequency represents how often a habit recurs
type Frequency string

const (
	AppName            = "daystreak"
	DefaultKeyringUser = "database-connection"
	Version            = "v0.3.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// Frequency constants
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"

	// Analytics windows, in days
	WeekWindowDays  = 7
	MonthWindowDays = 30

	// Default number of days rendered by `habit log`
	DefaultLogDays = 14
)
