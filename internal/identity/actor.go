package identity

import "freight_link/internal/models"

// Role values match the claims issued by the external auth layer.
const (
	RoleCompany     = "company"
	RoleTransporter = "transporter"
	RoleDriver      = "driver"
	RoleAdmin       = "admin"
)

// Actor is the resolved caller identity. Every core operation receives one
// explicitly; nothing in the core reads ambient session state. Authorization
// is expressed as capability predicates here rather than role-string
// branching at call sites.
type Actor struct {
	UserID uint
	Role   string
}

// CanManageOrder covers owner actions: cancel, accept a bid, direct assign.
func (a Actor) CanManageOrder(o *models.Order) bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.Role == RoleCompany && o.CompanyID == a.UserID
}

// CanCreateOrder reports whether the actor may book shipments.
func (a Actor) CanCreateOrder() bool {
	return a.Role == RoleCompany || a.Role == RoleAdmin
}

// CanBid reports whether the actor participates in auctions.
func (a Actor) CanBid() bool {
	return a.Role == RoleTransporter
}

// CanDrive covers driver actions on a specific order: pushing location
// samples and completing stops.
func (a Actor) CanDrive(o *models.Order) bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.Role == RoleDriver && o.AssignedDriverID != 0 && o.AssignedDriverID == a.UserID
}

// CanView covers read access: order details, bid leaderboard, live position.
func (a Actor) CanView(o *models.Order) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleCompany:
		return o.CompanyID == a.UserID
	case RoleTransporter:
		// Transporters see orders they won, plus anything still up for bids.
		return o.AssignedTransporterID == a.UserID || o.Status == models.StatusOpenForBidding
	case RoleDriver:
		return o.AssignedDriverID == a.UserID
	}
	return false
}
