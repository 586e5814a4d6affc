package store

import (
	"context"
	"errors"
	"time"

	"group-shipment-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared by the store and the services built on it.
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidState           = errors.New("invalid state")
	ErrCapacityExceeded       = errors.New("capacity exceeded")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrDuplicateOperation     = errors.New("duplicate operation")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInvalidInput           = errors.New("invalid input")
)

// JoinGroupParams attaches a parcel to a group.
type JoinGroupParams struct {
	GroupId    string
	ParcelId   string
	CustomerId string
	Now        time.Time
}

// LeaveGroupParams detaches a parcel from a group.
type LeaveGroupParams struct {
	GroupId    string
	ParcelId   string
	CustomerId string
	Now        time.Time
}

// FinalizeGroupParams moves an OPEN group to its finalized status. The
// update only applies while the group still holds ExpectedMembers, so a
// decision taken on a stale read is rejected.
type FinalizeGroupParams struct {
	GroupId           string
	To                models.GroupStatus
	ExpectedMembers   int
	EffectiveDiscount decimal.Decimal
	Now               time.Time
}

// FinalizeGroupResult reports the finalized group and the parcels whose
// membership was dissolved by a cancellation.
type FinalizeGroupResult struct {
	Group    *models.Group
	Detached []models.Parcel
}

// AgentPhase selects which agent slot of a group an assignment targets.
type AgentPhase string

const (
	PhasePickup   AgentPhase = "pickup"
	PhaseDelivery AgentPhase = "delivery"
)

// AssignAgentParams sets a group's pickup or delivery agent while moving it
// From -> To.
type AssignAgentParams struct {
	GroupId string
	Phase   AgentPhase
	AgentId string
	From    models.GroupStatus
	To      models.GroupStatus
	Now     time.Time
}

// CompletePickupParams records depot arrival for a group.
type CompletePickupParams struct {
	GroupId  string
	ProofUrl string
	Now      time.Time
}

// ParcelStatusParams moves a single parcel from one status to another.
type ParcelStatusParams struct {
	ParcelId string
	From     models.ParcelStatus
	To       models.ParcelStatus
	AgentId  string
	Now      time.Time
}

// EarningFilter narrows an earnings listing. Empty fields match everything.
type EarningFilter struct {
	CompanyId string
	AgentId   string
	Status    models.EarningStatus
	Limit     int
	Offset    int
}

// PayoutFilter narrows a payout listing. Empty fields match everything.
type PayoutFilter struct {
	OwnerType models.OwnerType
	OwnerId   string
	Status    models.PayoutStatus
	Limit     int
	Offset    int
}

// PayoutTransitionParams applies an admin or requester action to a payout.
type PayoutTransitionParams struct {
	PayoutId      string
	From          models.PayoutStatus
	To            models.PayoutStatus
	SettlementRef string
	Reason        string
	Now           time.Time
}

// GroupStore persists groups and the parcel membership they own.
type GroupStore interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, groupId string) (*models.Group, error)
	GetGroupByCode(ctx context.Context, code string) (*models.Group, error)
	ListOpenGroupsByRoute(ctx context.Context, route models.Route, now time.Time) ([]models.Group, error)
	ListExpiredOpenGroups(ctx context.Context, now time.Time, limit int) ([]models.Group, error)
	ListGroupsClosingSoon(ctx context.Context, now, until time.Time, maxSlots int) ([]models.Group, error)
	JoinGroup(ctx context.Context, params JoinGroupParams) (*models.Group, error)
	LeaveGroup(ctx context.Context, params LeaveGroupParams) (*models.Group, *models.Parcel, error)
	FinalizeGroup(ctx context.Context, params FinalizeGroupParams) (*FinalizeGroupResult, error)
	ReopenGroup(ctx context.Context, groupId string, now time.Time) (*models.Group, error)
	AssignGroupAgent(ctx context.Context, params AssignAgentParams) (*models.Group, error)
	CompleteGroupPickup(ctx context.Context, params CompletePickupParams) (*models.Group, error)
	CompleteGroupDelivery(ctx context.Context, groupId string, now time.Time) (*models.Group, error)
	MarkNotified(ctx context.Context, key string, now time.Time) (bool, error)
}

// ParcelStore persists the parcel fields the consolidation core owns and
// the read-only agent directory.
type ParcelStore interface {
	UpsertPaidParcel(ctx context.Context, parcel *models.Parcel) (*models.Parcel, error)
	GetParcel(ctx context.Context, parcelId string) (*models.Parcel, error)
	ListGroupParcels(ctx context.Context, groupId string) ([]models.Parcel, error)
	UpdateParcelStatus(ctx context.Context, params ParcelStatusParams) (*models.Parcel, error)
	MarkRefundCompleted(ctx context.Context, parcelId string, now time.Time) (*models.Parcel, error)
	CreateAgent(ctx context.Context, agent *models.Agent) error
	GetAgent(ctx context.Context, agentId string) (*models.Agent, error)
	ListAgents(ctx context.Context, companyId string) ([]models.Agent, error)
}

// LedgerStore persists earnings, wallets, their transactions and payouts.
// Every method that moves money returns the Transaction rows it appended.
type LedgerStore interface {
	PostEarning(ctx context.Context, earning *models.Earning) ([]models.Transaction, error)
	GetEarning(ctx context.Context, earningId string) (*models.Earning, error)
	GetEarningByParcel(ctx context.Context, parcelId string) (*models.Earning, error)
	ListEarnings(ctx context.Context, filter EarningFilter) ([]models.Earning, error)
	ListClearableEarnings(ctx context.Context, createdBefore time.Time, limit int) ([]models.Earning, error)
	ClearEarning(ctx context.Context, earningId string, now time.Time) (*models.Earning, []models.Transaction, error)
	UpdateEarningStatus(ctx context.Context, earningId string, from, to models.EarningStatus, now time.Time) (*models.Earning, error)
	CancelEarning(ctx context.Context, earningId, reason string, now time.Time) (*models.Earning, []models.Transaction, error)
	GetPlatformRevenue(ctx context.Context, from, to time.Time) (*models.PlatformRevenue, error)

	GetWallet(ctx context.Context, owner models.WalletOwner) (*models.Wallet, error)
	GetWalletById(ctx context.Context, walletId string) (*models.Wallet, error)
	ListWallets(ctx context.Context) ([]models.Wallet, error)
	GetTransactionHistory(ctx context.Context, walletId string, limit, offset int) ([]models.Transaction, error)
	ReconcileWallet(ctx context.Context, walletId string) error

	CreatePayout(ctx context.Context, payout *models.Payout) ([]models.Transaction, error)
	GetPayout(ctx context.Context, payoutId string) (*models.Payout, error)
	ListPayouts(ctx context.Context, filter PayoutFilter) ([]models.Payout, error)
	TransitionPayout(ctx context.Context, params PayoutTransitionParams) (*models.Payout, []models.Transaction, error)
}

// Store is the full persistence contract of the service.
type Store interface {
	GroupStore
	ParcelStore
	LedgerStore
	Close()
}
