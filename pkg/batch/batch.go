package batch

import (
	"regexp"
	"strconv"
	"time"
)

const (
	StatusPending  = "Pending"
	StatusCreated  = "Batch Created"
	StatusOnChain  = "On Blockchain"
	StatusRejected = "Rejected"
)

type Verdict string

const (
	VerdictApproved Verdict = "Approved"
	VerdictRejected Verdict = "Rejected"
)

// Batch is the local mirror of a tracked unit of goods.
type Batch struct {
	ID          string              `json:"id" yaml:"id"`
	Origin      string              `json:"origin" yaml:"origin"`
	Farm        string              `json:"farm" yaml:"farm"`
	Exporter    string              `json:"exporter" yaml:"exporter"`
	ContentHash string              `json:"ipfsHash" yaml:"ipfsHash"`
	Color       string              `json:"color" yaml:"color"`
	Temperature *float64            `json:"temperature" yaml:"temperature,omitempty"`
	Condition   string              `json:"condition" yaml:"condition"`
	Status      string              `json:"status" yaml:"status"`
	CreatedBy   string              `json:"created_by" yaml:"created_by"`
	CreatedAt   time.Time           `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time           `json:"timestamp" yaml:"timestamp"`
	TxHash      string              `json:"tx_hash,omitempty" yaml:"tx_hash,omitempty"`
	BlockNumber *uint64             `json:"block_number,omitempty" yaml:"block_number,omitempty"`
	History     []*InspectionRecord `json:"history" yaml:"history"`
}

// InspectionRecord is one party's observation and verdict. Records are never
// modified after they are appended to a batch history.
type InspectionRecord struct {
	BatchID      string    `json:"batch_id" yaml:"batch_id"`
	Role         string    `json:"role" yaml:"role"`
	User         string    `json:"user" yaml:"user"`
	Color        string    `json:"color" yaml:"color"`
	Temperature  *float64  `json:"temperature" yaml:"temperature,omitempty"`
	Remarks      string    `json:"remarks" yaml:"remarks"`
	Verdict      Verdict   `json:"status" yaml:"status"`
	Reasons      []string  `json:"reasons" yaml:"reasons"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	TxHash       string    `json:"onchain_tx,omitempty" yaml:"onchain_tx,omitempty"`
	OnchainError string    `json:"onchain_error,omitempty" yaml:"onchain_error,omitempty"`
}

func (r *InspectionRecord) Approved() bool {
	return r.Verdict == VerdictApproved
}

// Clone returns a deep copy so callers never alias the stored document.
func (b *Batch) Clone() *Batch {
	c := *b
	if b.Temperature != nil {
		t := *b.Temperature
		c.Temperature = &t
	}
	if b.BlockNumber != nil {
		n := *b.BlockNumber
		c.BlockNumber = &n
	}
	c.History = make([]*InspectionRecord, 0, len(b.History))
	for _, rec := range b.History {
		c.History = append(c.History, rec.Clone())
	}
	return &c
}

func (r *InspectionRecord) Clone() *InspectionRecord {
	c := *r
	if r.Temperature != nil {
		t := *r.Temperature
		c.Temperature = &t
	}
	c.Reasons = append([]string{}, r.Reasons...)
	return &c
}

var digits = regexp.MustCompile(`\d+`)

// SortKey is the first run of decimal digits embedded in the identifier, so
// "B1001" sorts as 1001. Identifiers without digits sort as 0.
func SortKey(id string) uint64 {
	run := digits.FindString(id)
	if run == "" {
		return 0
	}
	n, err := strconv.ParseUint(run, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
