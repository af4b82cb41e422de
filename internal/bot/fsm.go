package bot

import (
	"sync"
	"time"
)

// Wizard states. One private chat runs at most one wizard at a time.
const (
	stateShopName        = "shop_name"
	stateShopPhoto       = "shop_photo"
	stateShopDescription = "shop_description"
	stateShopAddress     = "shop_address"
	stateShopPhone       = "shop_phone"
	stateOwnerName       = "owner_name"
	stateOwnerPhone      = "owner_phone"
	stateOwnerUsername   = "owner_username"

	stateReviewComment = "review_comment"

	statePromoCode       = "promo_code"
	statePromoValue      = "promo_value"
	statePromoMinAmount  = "promo_min_amount"
	statePromoValidUntil = "promo_valid_until"

	stateRemindDate        = "remind_date"
	stateRemindDescription = "remind_description"

	statePhone = "phone"
)

type applicationDraft struct {
	ShopName        string
	PhotoFileID     string
	PhotoPath       string
	ShopDescription string
	ShopAddress     string
	ShopPhone       string
	OwnerName       string
	OwnerPhone      string
	OwnerUsername   string
}

type reviewDraft struct {
	ShopID  int64
	OrderID int64
	Rating  int
}

type promoDraft struct {
	Code           string
	PromoType      string
	Value          float64
	MinOrderAmount float64
	ValidUntil     *time.Time
	UseOnce        bool
	FirstOrderOnly bool
}

type remindDraft struct {
	EventDate string
}

// conversation is the mutable wizard context for one chat.
type conversation struct {
	State  string
	App    applicationDraft
	Review reviewDraft
	Promo  promoDraft
	Remind remindDraft
}

// stateManager keeps wizard conversations in process memory, keyed by chat
// id. State does not survive a restart; an interrupted wizard simply starts
// over.
type stateManager struct {
	mu    sync.Mutex
	chats map[int64]*conversation
}

func newStateManager() *stateManager {
	return &stateManager{chats: make(map[int64]*conversation)}
}

// Get returns the active conversation for a chat, or nil.
func (m *stateManager) Get(chatID int64) *conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chats[chatID]
}

// Begin replaces any conversation in the chat with a fresh one in the given
// state and returns it.
func (m *stateManager) Begin(chatID int64, state string) *conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv := &conversation{State: state}
	m.chats[chatID] = conv
	return conv
}

// Clear ends the conversation for a chat, if any.
func (m *stateManager) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, chatID)
}
