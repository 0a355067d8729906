package model

type Role string

const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusCancelled  SessionStatus = "cancelled"
)

type SessionCategory string

const (
	SessionCategoryIndividual SessionCategory = "individual"
	SessionCategoryGroup      SessionCategory = "group"
	SessionCategoryOnline     SessionCategory = "online"
	SessionCategoryWorkshop   SessionCategory = "workshop"
	SessionCategoryRetreat    SessionCategory = "retreat"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusNoShow     BookingStatus = "no_show"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// ContentType identifies the entity a review is attached to.
type ContentType string

const (
	ContentTypeProduct      ContentType = "product"
	ContentTypeEvent        ContentType = "event"
	ContentTypeSession      ContentType = "session"
	ContentTypeProfessional ContentType = "professional"
)

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

type NotificationKind string

const (
	NotificationReviewRequest    NotificationKind = "review_request"
	NotificationReviewReminder   NotificationKind = "review_reminder"
	NotificationReviewResponse   NotificationKind = "review_response"
	NotificationBookingRequested NotificationKind = "booking_requested"
	NotificationBookingConfirmed NotificationKind = "booking_confirmed"
	NotificationBookingCancelled NotificationKind = "booking_cancelled"
	NotificationSessionCompleted NotificationKind = "session_completed"
	NotificationSessionCancelled NotificationKind = "session_cancelled"
)
