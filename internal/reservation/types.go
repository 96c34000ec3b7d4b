package reservation

import "time"

// Pending stages.
const (
	StageFilling = "filling"
	StageConfirm = "confirm"
)

// Pending is the slot-filling state of one chat. Filled fields are never
// overwritten by later turns.
type Pending struct {
	ID         string
	BranchID   string
	ChatID     string
	Stage      string
	Restaurant string
	Name       string
	Party      string
	Date       string
	UpdatedAt  time.Time
}

// Reservation is a committed reservation row.
type Reservation struct {
	ID         string    `json:"id"`
	BranchID   string    `json:"branch_id"`
	UserID     string    `json:"user_id"`
	Restaurant string    `json:"restaurant"`
	Name       string    `json:"name"`
	Party      string    `json:"party"`
	Date       string    `json:"date"`
	CreatedAt  time.Time `json:"created_at"`
}

func (p *Pending) complete() bool {
	return p.Restaurant != "" && p.Name != "" && p.Party != "" && p.Date != ""
}

// missingFields lists the empty slots in the fixed enumeration order.
func (p *Pending) missingFields() []string {
	missing := make([]string, 0, 4)
	if p.Restaurant == "" {
		missing = append(missing, "restaurante")
	}
	if p.Name == "" {
		missing = append(missing, "nome")
	}
	if p.Party == "" {
		missing = append(missing, "número de pessoas")
	}
	if p.Date == "" {
		missing = append(missing, "data/horário")
	}
	return missing
}
