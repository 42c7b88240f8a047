package loanstore

// Availability is the derived stock view of one item. It is never stored:
// every read recomputes it from the item's on-shelf quantity and the
// committed loan lines, so it is always consistent with the latest commit.
type Availability struct {
	// OnShelf is the item's stored quantity, the physical count on the shelf.
	OnShelf int

	// Pending is the total quantity reserved by PENDING loan lines.
	Pending int

	// OnLoan is the total quantity currently out on ON_LOAN lines.
	OnLoan int

	// Total is the full physical asset count including what is out: OnShelf + OnLoan.
	Total int

	// Net is what is left to promise against new requests: max(0, OnShelf - Pending).
	Net int
}

// CatalogueEntry pairs an item with its derived availability, as returned
// by catalogue reads.
type CatalogueEntry struct {
	Item         Item
	Availability Availability
}

// LineQuantity is the minimal view of a loan line needed for derivation.
type LineQuantity struct {
	Status LineStatus
	Qty    int
}

// DeriveAvailability computes an item's availability from its on-shelf
// quantity and the loan lines referencing it. This is the single derivation
// used by both catalogue reads and approval checks.
func DeriveAvailability(onShelf int, lines []LineQuantity) Availability {
	pending := 0
	onLoan := 0

	for _, line := range lines {
		switch line.Status {
		case LineStatusPending:
			pending += line.Qty
		case LineStatusOnLoan:
			onLoan += line.Qty
		}
	}

	return AvailabilityFromAggregates(onShelf, pending, onLoan)
}

// AvailabilityFromAggregates builds an Availability from already-summed
// pending and on-loan quantities, e.g. aggregates computed by the store.
func AvailabilityFromAggregates(onShelf int, pending int, onLoan int) Availability {
	net := onShelf - pending
	if net < 0 {
		net = 0
	}

	return Availability{
		OnShelf: onShelf,
		Pending: pending,
		OnLoan:  onLoan,
		Total:   onShelf + onLoan,
		Net:     net,
	}
}
