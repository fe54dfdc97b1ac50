package types

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Room modes and their fixed capacities.
const (
	ModeOneOnOne = "one_on_one"
	ModeGroup    = "group"

	CapacityOneOnOne = 2
	CapacityGroup    = 5
)

// Room statuses. A room moves from waiting to active once, when it fills.
const (
	RoomStatusWaiting = "waiting"
	RoomStatusActive  = "active"
)

// TransactionStatusPaid is the only status the mock payment flow records.
const TransactionStatusPaid = "paid"

// User is an account with its gamification counters.
type User struct {
	ID            int64       `json:"id" db:"id"`
	Name          string      `json:"name" db:"name"`
	Email         string      `json:"email" db:"email"`
	PasswordHash  string      `json:"-" db:"password_hash"`
	LevelTag      string      `json:"level_tag" db:"level_tag"`
	XP            int         `json:"xp" db:"xp"`
	Level         int         `json:"level" db:"level"`
	Coins         int         `json:"coins" db:"coins"`
	IsPremium     bool        `json:"is_premium" db:"is_premium"`
	StreakDays    int         `json:"streak_days" db:"streak_days"`
	LastLoginDate null.String `json:"last_login_date" db:"last_login_date"` // YYYY-MM-DD
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// Material is an entry of the content library.
type Material struct {
	ID          int64     `json:"id" db:"id"`
	LevelTag    string    `json:"level_tag" db:"level_tag"`
	Grade       string    `json:"grade" db:"grade"`
	Subject     string    `json:"subject" db:"subject"`
	Topic       string    `json:"topic" db:"topic"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	VideoURL    string    `json:"video_url" db:"video_url"`
	IsPremium   bool      `json:"is_premium" db:"is_premium"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// MaterialFilter narrows a library listing. Empty fields match everything.
type MaterialFilter struct {
	LevelTag string
	Grade    string
	Subject  string
}

// Bookmark marks a material for a user. The pair is unique.
type Bookmark struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	MaterialID int64     `json:"material_id" db:"material_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Note is free text a user attaches to a material.
type Note struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	MaterialID int64     `json:"material_id" db:"material_id"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Room is a study room matched by level tag, subject and mode.
type Room struct {
	ID        int64     `json:"id" db:"id"`
	LevelTag  string    `json:"level_tag" db:"level_tag"`
	Subject   string    `json:"subject" db:"subject"`
	Mode      string    `json:"mode" db:"mode"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Membership records that a user joined a room.
type Membership struct {
	ID       int64     `json:"id" db:"id"`
	RoomID   int64     `json:"room_id" db:"room_id"`
	UserID   int64     `json:"user_id" db:"user_id"`
	UserName string    `json:"user_name" db:"user_name"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

// Message is an immutable chat line in a room. UserName is resolved from the
// author on read.
type Message struct {
	ID        int64     `json:"id" db:"id"`
	RoomID    int64     `json:"room_id" db:"room_id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	UserName  string    `json:"user_name" db:"user_name"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Transaction is a recorded plan purchase.
type Transaction struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Plan      string    `json:"plan" db:"plan"`
	Amount    int       `json:"amount" db:"amount"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Plan is an entry of the static upgrade catalog.
type Plan struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

// Plans lists the upgrade catalog in display order.
var Plans = []Plan{
	{Code: "basic", Name: "Basic", Amount: 29000},
	{Code: "pro", Name: "Pro", Amount: 49000},
	{Code: "elite", Name: "Elite", Amount: 79000},
}

// LookupPlan returns the catalog entry for code.
func LookupPlan(code string) (Plan, bool) {
	for _, p := range Plans {
		if p.Code == code {
			return p, true
		}
	}
	return Plan{}, false
}

// ModeCapacity returns the room capacity for mode.
func ModeCapacity(mode string) (int, bool) {
	switch mode {
	case ModeOneOnOne:
		return CapacityOneOnOne, true
	case ModeGroup:
		return CapacityGroup, true
	default:
		return 0, false
	}
}
